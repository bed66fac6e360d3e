/*
Package comm provides the replication layer between replica nodes. Locally created operations are
handed to a sender that stores them in a durable on-disk log and pushes them to all configured
peers over mutually authenticated TLS connections. A receiver accepts incoming sync messages,
stores them durably as well and applies them through the node's instance registry.

Delivery is at-least-once: a message leaves a log only after it was sent to every peer or applied
locally, and the CRDT types make duplicated application a no-op. Operations that are not causally
ready yet are re-queued and retried until their dependencies arrived.

CAUTION! The sync message payload is the exact canonical operation encoding that was signed by its
creator. It must be forwarded byte for byte, any re-encoding invalidates the signature.
*/
package comm
