package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/comm"
	"github.com/maidsafe/sn-data-types-sub001/crdt"
	"github.com/maidsafe/sn-data-types-sub001/crypto"
	"github.com/maidsafe/sn-data-types-sub001/policy"
	"github.com/maidsafe/sn-data-types-sub001/types"
)

// Functions

func main() {

	addr := flag.String("addr", "", "sync address of the target replica (required)")
	cert := flag.String("cert", "", "path to client certificate accepted on the sync network (required)")
	key := flag.String("key", "", "path to the certificate's private key (required)")
	rootCert := flag.String("rootcert", "", "path to the root certificate of the sync network (required)")
	output := flag.String("output", "", "output file for timing lines (required)")
	name := flag.String("name", "load-test", "name part of the target sequence address")
	tag := flag.Uint64("tag", 20, "tag part of the target sequence address")
	ops := flag.Int("ops", 100, "number of append operations to send")

	flag.Parse()

	if (len(*addr) == 0) || (len(*cert) == 0) || (len(*key) == 0) || (len(*rootCert) == 0) || (len(*output) == 0) {
		log.Fatal("not enough arguments, try -h")
	}

	tlsConfig, err := crypto.NewSyncTLSConfig(*cert, *key, *rootCert)
	if err != nil {
		log.Fatal(err)
	}

	// The generated key has to be present in the target
	// deployment's key directory for the operations to
	// apply, otherwise they only exercise the transport.
	keypair, err := auth.NewKeypair()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Signing operations with key %s", keypair.Public.String())

	pol := policy.Public{
		PolicyOwner: keypair.Public,
		Permissions: map[policy.User]policy.PublicPermissions{},
	}

	seqAddr := types.NewAddress(types.KindPublic, *name, *tag)
	seq := crdt.InitSequence(seqAddr, "load", pol)

	log.Println("Connecting to replica...")

	conn, err := comm.ReliableConnect("target", *addr, tlsConfig, 250)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("Connected")

	f, err := os.OpenFile(*output, (os.O_CREATE | os.O_APPEND | os.O_WRONLY), 0600)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	log.Println("Sending operations")

	var total time.Duration

	for i := 0; i < *ops; i++ {

		// Each operation has to be applied locally first so
		// that the next one anchors behind it.
		op := seq.CreateAppendOp(nil, []byte(strconv.Itoa(i)), keypair.Public)
		op.Sign(keypair)

		if err := seq.ApplyOp(op); err != nil {
			log.Fatal(err)
		}

		msg := comm.Msg{Replica: "load-client", Payload: op.String()}

		t1 := time.Now()

		conn, err = comm.ReliableSend(conn, msg.String(), "target", *addr, tlsConfig, 5000, 250)
		if err != nil {
			log.Fatal(err)
		}

		diff := time.Since(t1)
		total += diff

		if _, err = f.WriteString(strconv.Itoa(i) + ", " + diff.String() + "\r\n"); err != nil {
			log.Fatal(err)
		}
	}

	conn.Close()

	log.Printf("Sent %d operations in %s (%s per operation)", *ops, total, (total / time.Duration(*ops)))
}
