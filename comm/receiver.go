package comm

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/maidsafe/sn-data-types-sub001/crdt"
	"github.com/pkg/errors"
)

// Interfaces

// Applier is the downstream half of the receiver: it takes
// a parsed operation and applies it to the right local CRDT
// instance. The node package's registry implements it.
type Applier interface {

	// ApplyOp applies supplied operation to local state.
	ApplyOp(op crdt.Op) error
}

// Structs

// SyncMetrics bundles the counters the receiver maintains
// about the operations it processed.
type SyncMetrics struct {
	Applied  metrics.Counter
	Deferred metrics.Counter
	Rejected metrics.Counter
}

// Receiver bundles all information needed to accept and
// process incoming sync messages from peer replicas.
type Receiver struct {
	lock     *sync.Mutex
	logger   log.Logger
	name     string
	applier  Applier
	metrics  *SyncMetrics
	msgInLog chan struct{}
	socket   net.Listener
	writeLog *os.File
	updLog   *os.File
	wg       *sync.WaitGroup
	shutdown chan struct{}
	done     chan struct{}
}

// Functions

// InitReceiver initializes above struct and sets default
// values. It starts involved background routines and sends
// an initial channel trigger.
func InitReceiver(logger log.Logger, name string, logFilePath string, socket net.Listener, applier Applier, syncMetrics *SyncMetrics, downRecv chan struct{}) (*Receiver, error) {

	recv := &Receiver{
		lock:     &sync.Mutex{},
		logger:   logger,
		name:     name,
		applier:  applier,
		metrics:  syncMetrics,
		msgInLog: make(chan struct{}, 1),
		socket:   socket,
		wg:       &sync.WaitGroup{},
		shutdown: make(chan struct{}, 3),
		done:     make(chan struct{}),
	}

	// Open log file descriptor for writing.
	write, err := os.OpenFile(logFilePath, (os.O_CREATE | os.O_WRONLY | os.O_APPEND), 0600)
	if err != nil {
		return nil, fmt.Errorf("[comm.InitReceiver] Opening sync log file for writing failed with: %v", err)
	}
	recv.writeLog = write

	// Open log file descriptor for updating.
	upd, err := os.OpenFile(logFilePath, os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("[comm.InitReceiver] Opening sync log file for updating failed with: %v", err)
	}
	recv.updLog = upd

	// Start eventual shutdown routine in background.
	go recv.Shutdown(downRecv)

	// Apply received messages in background.
	recv.wg.Add(1)
	go recv.ApplyStoredMsgs()

	// If we just started the application, perform an
	// initial run to check if log file contains elements.
	recv.msgInLog <- struct{}{}

	// Start triggering msgInLog events periodically.
	recv.wg.Add(1)
	go recv.TriggerMsgApplier()

	// Accept incoming messages in background.
	recv.wg.Add(1)
	go recv.AcceptIncMsgs()

	return recv, nil
}

// Shutdown awaits a receiver global shutdown signal and in
// turn instructs involved goroutines to finish and clean up.
func (recv *Receiver) Shutdown(downRecv chan struct{}) {

	<-downRecv

	level.Info(recv.logger).Log("msg", "receiver shutting down")

	// Instruct other goroutines to shutdown.
	recv.shutdown <- struct{}{}
	recv.shutdown <- struct{}{}
	recv.shutdown <- struct{}{}

	close(recv.msgInLog)

	// Closing the socket unblocks a pending Accept.
	recv.lock.Lock()
	recv.socket.Close()
	recv.lock.Unlock()

	recv.wg.Wait()

	level.Info(recv.logger).Log("msg", "receiver done")

	close(recv.done)
}

// Done returns a channel that is closed once the receiver
// has fully shut down after a signal on its down channel.
func (recv *Receiver) Done() <-chan struct{} {
	return recv.done
}

// AcceptIncMsgs runs in background and waits for incoming
// sync connections. As soon as one is established, it
// dispatches into the next routine.
func (recv *Receiver) AcceptIncMsgs() error {

	defer recv.wg.Done()

	for {

		select {

		case <-recv.shutdown:

			recv.lock.Lock()
			recv.writeLog.Close()
			recv.lock.Unlock()

			return nil

		default:

			conn, err := recv.socket.Accept()
			if err != nil {
				return fmt.Errorf("[comm.AcceptIncMsgs] Accepting incoming sync messages at %s failed with: %v", recv.name, err)
			}

			go recv.StoreIncMsgs(conn)
		}
	}
}

// TriggerMsgApplier starts a timer that triggers an
// msgInLog event when its duration elapsed. Supposed to
// routinely poke the ApplyStoredMsgs into checking for
// unprocessed messages in the log, which also drives the
// retry of causally deferred operations.
func (recv *Receiver) TriggerMsgApplier() {

	defer recv.wg.Done()

	triggerD := 5 * time.Second
	triggerT := time.NewTimer(triggerD)

	for {

		select {

		case <-recv.shutdown:
			triggerT.Stop()
			return

		case <-triggerT.C:

			if len(recv.msgInLog) < 1 {
				recv.msgInLog <- struct{}{}
			}

			triggerT.Reset(triggerD)
		}
	}
}

// StoreIncMsgs reads sync messages off supplied connection
// and saves each into the incoming sync log file. Ping
// lines testing the long-lived connection are discarded.
func (recv *Receiver) StoreIncMsgs(conn net.Conn) {

	r := bufio.NewReader(conn)

	for {

		msgRaw, err := r.ReadString('\n')
		if err != nil {

			if (err == io.EOF) || strings.Contains(err.Error(), "use of closed network connection") {
				return
			}

			level.Warn(recv.logger).Log("msg", "error while reading sync message, closing connection", "err", err)
			conn.Close()

			return
		}

		// Remove trailing characters denoting line end.
		msgRaw = strings.TrimRight(msgRaw, "\r\n")

		if (msgRaw == "> ping <") || (msgRaw == "") {
			continue
		}

		recv.lock.Lock()

		// Write message to sync log file and save it to
		// stable storage before considering it received.
		_, err = recv.writeLog.WriteString(fmt.Sprintf("%s\n", msgRaw))
		if err == nil {
			err = recv.writeLog.Sync()
		}

		recv.lock.Unlock()

		if err != nil {
			level.Error(recv.logger).Log("msg", "writing received sync message to log file failed", "err", err)
			os.Exit(1)
		}

		// Indicate to applying routine that a new message
		// is waiting in the log.
		if len(recv.msgInLog) < 1 {
			recv.msgInLog <- struct{}{}
		}
	}
}

// ApplyStoredMsgs waits for a signal on the msgInLog
// channel, takes the oldest message from the sync log file
// and applies the operation it carries. Operations that are
// not causally ready yet are moved to the end of the log
// and retried on the next trigger.
func (recv *Receiver) ApplyStoredMsgs() {

	defer recv.wg.Done()

	for {

		select {

		case <-recv.shutdown:
			return

		default:

			_, ok := <-recv.msgInLog
			if !ok {
				return
			}

			recv.lock.Lock()

			line, err := firstLine(recv.updLog)
			if err != nil {
				level.Error(recv.logger).Log("msg", "could not read first line of sync log file", "err", err)
				os.Exit(1)
			}

			// Check if log file is empty and continue at
			// next for loop iteration if that is the case.
			if line == "" {
				recv.lock.Unlock()
				continue
			}

			retrigger, err := recv.applyLine(line)
			if err != nil {
				level.Error(recv.logger).Log("msg", "could not update sync log file after processing", "err", err)
				os.Exit(1)
			}

			recv.lock.Unlock()

			// Re-poke only if the processed message made
			// progress. A deferred message waits for the
			// periodic trigger instead, avoiding a busy
			// retry loop.
			if retrigger && (len(recv.msgInLog) < 1) {
				recv.msgInLog <- struct{}{}
			}
		}
	}
}

// applyLine processes one stored sync message line and
// updates the log file accordingly. It reports whether the
// applying routine should look at the log again right away.
// Expects the lock held.
func (recv *Receiver) applyLine(line string) (bool, error) {

	msg, err := ParseMsg(line)
	if err != nil {

		// A message we cannot even parse never becomes
		// applicable, drop it.
		level.Warn(recv.logger).Log("msg", "dropping malformed sync message", "err", err)
		recv.metrics.Rejected.Add(1)

		return true, dropFirstLine(recv.updLog)
	}

	op, err := crdt.ParseOp(msg.Payload)
	if err != nil {

		level.Warn(recv.logger).Log("msg", "dropping sync message with malformed operation", "replica", msg.Replica, "err", err)
		recv.metrics.Rejected.Add(1)

		return true, dropFirstLine(recv.updLog)
	}

	err = recv.applier.ApplyOp(op)
	if errors.Cause(err) == crdt.ErrNotCausallyReady {

		// Move the message to the end of the log so its
		// dependencies get a chance to apply first.
		level.Debug(recv.logger).Log("msg", "deferring causally not ready operation", "target", op.Target().String())
		recv.metrics.Deferred.Add(1)

		err = dropFirstLine(recv.updLog)
		if err != nil {
			return false, err
		}

		return false, appendLine(recv.updLog, line)
	}

	if err != nil {

		// Bad signature, wrong address or inconsistent
		// state. Retrying cannot fix any of those.
		level.Warn(recv.logger).Log("msg", "rejecting sync operation", "target", op.Target().String(), "err", err)
		recv.metrics.Rejected.Add(1)

		return true, dropFirstLine(recv.updLog)
	}

	recv.metrics.Applied.Add(1)

	return true, dropFirstLine(recv.updLog)
}
