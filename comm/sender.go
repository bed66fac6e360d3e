package comm

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Structs

// Sender bundles information needed for pushing locally
// created operations out to all peer replicas.
type Sender struct {
	lock      *sync.Mutex
	logger    log.Logger
	name      string
	tlsConfig *tls.Config
	timeout   int
	retry     int
	inc       chan Msg
	msgInLog  chan struct{}
	writeLog  *os.File
	updLog    *os.File
	peers     map[string]string
	conns     map[string]*tls.Conn
}

// Functions

// InitSender initializes above struct and sets default
// values for most involved elements to start with. It
// returns a channel local processes can put operations
// into, so that those operations will be communicated to
// all connected peer replicas.
func InitSender(logger log.Logger, name string, logFilePath string, tlsConfig *tls.Config, timeout int, retry int, peers map[string]string) (chan Msg, error) {

	sender := &Sender{
		lock:      &sync.Mutex{},
		logger:    logger,
		name:      name,
		tlsConfig: tlsConfig,
		timeout:   timeout,
		retry:     retry,
		inc:       make(chan Msg),
		msgInLog:  make(chan struct{}, 1),
		peers:     peers,
		conns:     make(map[string]*tls.Conn),
	}

	// Open log file descriptor for writing.
	write, err := os.OpenFile(logFilePath, (os.O_CREATE | os.O_WRONLY | os.O_APPEND), 0600)
	if err != nil {
		return nil, fmt.Errorf("[comm.InitSender] Opening operation log file for writing failed with: %v", err)
	}
	sender.writeLog = write

	// Open log file descriptor for updating.
	upd, err := os.OpenFile(logFilePath, os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("[comm.InitSender] Opening operation log file for updating failed with: %v", err)
	}
	sender.updLog = upd

	// Start brokering routine in background.
	go sender.BrokerMsgs()

	// Start sending routine in background.
	go sender.SendMsgs()

	// If we just started the application, perform an
	// initial run to check if log file contains elements.
	sender.msgInLog <- struct{}{}

	// Return this channel to pass to processes.
	return sender.inc, nil
}

// BrokerMsgs awaits an operation to send to peer replicas
// from one of the local processes on channel inc. It stores
// the message for sending in the dedicated operation log
// file and passes on a signal that a new message is
// available.
func (sender *Sender) BrokerMsgs() {

	for {

		payload, ok := <-sender.inc
		if !ok {
			return
		}

		sender.lock.Lock()

		// Set this replica's name as sending part.
		payload.Replica = sender.name

		// Append the message to the operation log file and
		// save it to stable storage before acknowledging.
		_, err := sender.writeLog.WriteString(fmt.Sprintf("%s\n", payload.String()))
		if err != nil {
			level.Error(sender.logger).Log("msg", "writing to operation log file failed", "err", err)
			os.Exit(1)
		}

		err = sender.writeLog.Sync()
		if err != nil {
			level.Error(sender.logger).Log("msg", "syncing operation log file to stable storage failed", "err", err)
			os.Exit(1)
		}

		sender.lock.Unlock()

		// Indicate consecutive loop iterations
		// that a message is waiting in log.
		if len(sender.msgInLog) < 1 {
			sender.msgInLog <- struct{}{}
		}
	}
}

// SendMsgs waits for a signal indicating that a message is
// waiting in the log file to be sent out and sends that to
// all peer replicas. Only after every peer acknowledged the
// connection-level write does the message leave the log, so
// a crash in between leads to a resend instead of a loss.
func (sender *Sender) SendMsgs() {

	for {

		_, ok := <-sender.msgInLog
		if !ok {
			return
		}

		sender.lock.Lock()

		// Read the oldest message from the log file.
		line, err := firstLine(sender.updLog)
		if err != nil {
			level.Error(sender.logger).Log("msg", "could not read first line of operation log file", "err", err)
			os.Exit(1)
		}

		sender.lock.Unlock()

		// Check if log file is empty and continue at next
		// for loop iteration if that is the case.
		if line == "" {
			continue
		}

		// Send the message to every peer replica over its
		// long-lived sync connection.
		for peer, addr := range sender.peers {

			conn, found := sender.conns[peer]
			if !found {

				conn, err = ReliableConnect(peer, addr, sender.tlsConfig, sender.retry)
				if err != nil {
					level.Error(sender.logger).Log("msg", "could not connect to peer replica", "peer", peer, "err", err)
					os.Exit(1)
				}
			}

			conn, err = ReliableSend(conn, line, peer, addr, sender.tlsConfig, sender.timeout, sender.retry)
			if err != nil {
				level.Error(sender.logger).Log("msg", "could not send sync message to peer replica", "peer", peer, "err", err)
				os.Exit(1)
			}

			sender.conns[peer] = conn
		}

		sender.lock.Lock()

		// The message reached all peers, remove
		// it from the log file.
		err = dropFirstLine(sender.updLog)
		if err != nil {
			level.Error(sender.logger).Log("msg", "could not remove sent message from operation log file", "err", err)
			os.Exit(1)
		}

		sender.lock.Unlock()

		// We do not know how many elements are waiting in the
		// log file. Therefore attempt to send next one and if
		// it does not exist, the loop iteration will abort.
		if len(sender.msgInLog) < 1 {
			sender.msgInLog <- struct{}{}
		}
	}
}

// firstLine returns the oldest line of supplied log file
// without removing it, or an empty string if the log
// holds no complete line.
func firstLine(logFile *os.File) (string, error) {

	buf, err := logContents(logFile)
	if err != nil {
		return "", err
	}

	line, err := buf.ReadString('\n')
	if (err != nil) && (err != io.EOF) {
		return "", err
	}

	if len(line) == 0 || line[len(line)-1] != '\n' {
		return "", nil
	}

	return line[:(len(line) - 1)], nil
}

// dropFirstLine removes the oldest line of supplied log
// file by writing back the remaining contents and
// truncating to their size.
func dropFirstLine(logFile *os.File) error {

	buf, err := logContents(logFile)
	if err != nil {
		return err
	}

	_, err = buf.ReadString('\n')
	if (err != nil) && (err != io.EOF) {
		return err
	}

	// Copy reduced buffer contents back to beginning of
	// log file, effectively deleting the first line.
	_, err = logFile.Seek(0, io.SeekStart)
	if err != nil {
		return err
	}

	newNumOfBytes, err := io.Copy(logFile, buf)
	if err != nil {
		return err
	}

	// Now, truncate log file size to exact amount of
	// bytes copied from buffer.
	err = logFile.Truncate(newNumOfBytes)
	if err != nil {
		return err
	}

	err = logFile.Sync()
	if err != nil {
		return err
	}

	_, err = logFile.Seek(0, io.SeekStart)

	return err
}

// appendLine adds supplied line at the end of supplied
// log file and syncs it to stable storage.
func appendLine(logFile *os.File, line string) error {

	_, err := logFile.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	_, err = logFile.WriteString(fmt.Sprintf("%s\n", line))
	if err != nil {
		return err
	}

	err = logFile.Sync()
	if err != nil {
		return err
	}

	_, err = logFile.Seek(0, io.SeekStart)

	return err
}

// logContents reads the complete contents of supplied log
// file into a fresh buffer and resets the read position.
func logContents(logFile *os.File) (*bytes.Buffer, error) {

	info, err := logFile.Stat()
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(make([]byte, 0, info.Size()))

	_, err = logFile.Seek(0, io.SeekStart)
	if err != nil {
		return nil, err
	}

	_, err = io.Copy(buf, logFile)
	if err != nil {
		return nil, err
	}

	_, err = logFile.Seek(0, io.SeekStart)
	if err != nil {
		return nil, err
	}

	return buf, nil
}
