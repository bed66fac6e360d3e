package node

import (
	"fmt"
	"net"

	"crypto/tls"

	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/comm"
	"github.com/maidsafe/sn-data-types-sub001/crdt"
	"github.com/pkg/errors"
)

// Variables

// ErrInstanceExists is returned when an instance is
// registered under an address that is already taken.
var ErrInstanceExists = errors.New("an instance is already registered under this address")

// ErrUnknownInstance is returned when an operation targets
// an address no local instance is registered under.
var ErrUnknownInstance = errors.New("no instance registered under the operation's target address")

// ErrUnknownSource is returned when an operation declares a
// source key the key directory does not know.
var ErrUnknownSource = errors.New("operation source key is not registered in the key directory")

// Structs

// Registry tracks the live CRDT instances of one replica
// node keyed by their address and routes incoming sync
// operations to the right instance and operation kind. It
// implements the replication layer's Applier interface.
type Registry struct {
	lock         sync.RWMutex
	logger       log.Logger
	directory    auth.KeyDirectory
	syncSendChan chan<- comm.Msg
	sequences    map[string]*crdt.SequenceCrdt
	registers    map[string]*crdt.RegisterCrdt
	maps         map[string]*crdt.MapCrdt
}

// Functions

// InitRegistry returns an empty instance registry. If a key
// directory is supplied, operations from source keys the
// directory does not know are refused before they reach any
// instance.
func InitRegistry(logger log.Logger, directory auth.KeyDirectory) *Registry {

	return &Registry{
		logger:    logger,
		directory: directory,
		sequences: make(map[string]*crdt.SequenceCrdt),
		registers: make(map[string]*crdt.RegisterCrdt),
		maps:      make(map[string]*crdt.MapCrdt),
	}
}

// ConnectSender attaches the replication layer's outgoing
// message channel. Once connected, operations submitted via
// SubmitLocal are broadcast to all peer replicas.
func (reg *Registry) ConnectSender(syncSendChan chan<- comm.Msg) {

	reg.lock.Lock()
	defer reg.lock.Unlock()

	reg.syncSendChan = syncSendChan
}

// SubmitLocal takes a signed operation created by a local
// write surface, applies it to the targeted instance and
// hands its canonical encoding to the replication layer.
// Application before broadcast keeps a replica from ever
// sending an operation it does not hold itself.
func (reg *Registry) SubmitLocal(op crdt.Op) error {

	err := reg.ApplyOp(op)
	if err != nil {
		return err
	}

	reg.lock.RLock()
	syncSendChan := reg.syncSendChan
	reg.lock.RUnlock()

	if syncSendChan != nil {
		syncSendChan <- comm.Msg{Payload: op.String()}
	}

	return nil
}

// taken reports whether any instance kind occupies the
// supplied address key. Expects the lock held.
func (reg *Registry) taken(key string) bool {

	_, seq := reg.sequences[key]
	_, rgs := reg.registers[key]
	_, mps := reg.maps[key]

	return seq || rgs || mps
}

// AddSequence registers supplied sequence instance under
// its address.
func (reg *Registry) AddSequence(seq *crdt.SequenceCrdt) error {

	reg.lock.Lock()
	defer reg.lock.Unlock()

	key := seq.Address().String()
	if reg.taken(key) {
		return ErrInstanceExists
	}

	reg.sequences[key] = seq

	return nil
}

// AddRegister registers supplied register instance under
// its address.
func (reg *Registry) AddRegister(r *crdt.RegisterCrdt) error {

	reg.lock.Lock()
	defer reg.lock.Unlock()

	key := r.Address().String()
	if reg.taken(key) {
		return ErrInstanceExists
	}

	reg.registers[key] = r

	return nil
}

// AddMap registers supplied map instance under its address.
func (reg *Registry) AddMap(m *crdt.MapCrdt) error {

	reg.lock.Lock()
	defer reg.lock.Unlock()

	key := m.Address().String()
	if reg.taken(key) {
		return ErrInstanceExists
	}

	reg.maps[key] = m

	return nil
}

// Sequence returns the sequence instance registered under
// supplied address, or false.
func (reg *Registry) Sequence(key string) (*crdt.SequenceCrdt, bool) {

	reg.lock.RLock()
	defer reg.lock.RUnlock()

	seq, found := reg.sequences[key]

	return seq, found
}

// Register returns the register instance registered under
// supplied address, or false.
func (reg *Registry) Register(key string) (*crdt.RegisterCrdt, bool) {

	reg.lock.RLock()
	defer reg.lock.RUnlock()

	r, found := reg.registers[key]

	return r, found
}

// Map returns the map instance registered under supplied
// address, or false.
func (reg *Registry) Map(key string) (*crdt.MapCrdt, bool) {

	reg.lock.RLock()
	defer reg.lock.RUnlock()

	m, found := reg.maps[key]

	return m, found
}

// ApplyOp routes supplied operation to the instance
// registered under its target address. Operations whose
// kind does not match the registered instance count as
// targeting an unknown instance.
func (reg *Registry) ApplyOp(op crdt.Op) error {

	// Refuse operations from signers this deployment
	// does not know at all.
	if (reg.directory != nil) && !reg.directory.IsKnownKey(op.Signer()) {
		level.Debug(reg.logger).Log("msg", "refusing operation from unknown source key", "target", op.Target().String())
		return ErrUnknownSource
	}

	key := op.Target().String()

	switch o := op.(type) {

	case *crdt.SequenceOp:

		seq, found := reg.Sequence(key)
		if !found {
			return ErrUnknownInstance
		}

		return seq.ApplyOp(o)

	case *crdt.RegisterOp:

		r, found := reg.Register(key)
		if !found {
			return ErrUnknownInstance
		}

		return r.ApplyOp(o)

	case *crdt.MapDataOp:

		m, found := reg.Map(key)
		if !found {
			return ErrUnknownInstance
		}

		return m.ApplyDataOp(o)

	case *crdt.MapPolicyOp:

		m, found := reg.Map(key)
		if !found {
			return ErrUnknownInstance
		}

		return m.ApplyPolicyOp(o)

	default:
		return errors.New("unsupported operation kind reached the registry")
	}
}

// InitSyncSocket listens for TLS connections of peer
// replicas on supplied address.
func InitSyncSocket(logger log.Logger, tlsConfig *tls.Config, addr string) (net.Listener, error) {

	socket, err := tls.Listen("tcp", addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("[node.InitSyncSocket] Listening for TLS sync connections failed with: %v", err)
	}

	level.Info(logger).Log("msg", "listening for incoming sync connections", "addr", socket.Addr().String())

	return socket, nil
}
