// Package backend provides a local directory backend stored in badger.
//
// # Overview
//
// A Backend holds the entries below one or more base DNs and is the workflow
// the network group routes those suffixes to. It serves add, bind, modify,
// modify DN and search operations:
//
//	cfg := backend.NewConfig()
//	cfg.BaseDNs = []string{"dc=example,dc=com"}
//	b, err := backend.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//	group.Register("dc=example,dc=com", b)
//
// # Storage
//
// Entries are encoded as JSON and stored under their normalized DN. A child
// index keyed by the parent DN backs the leaf checks of modify DN. Writes are
// serialized; reads run in badger read transactions.
//
// # Operational Attributes
//
// The backend maintains createTimestamp, creatorsName, modifyTimestamp,
// modifiersName, entryUUID and entryDN. Clients cannot set them: values in
// an add request are dropped and modifications of them are rejected with
// constraintViolation.
//
// # Sub-operations
//
// Every executed request records one operation.SubOperation carrying the
// backend name, the result, the entry after the change, the entry before it
// and a change number drawn from a persistent sequence. The engine forwards
// successful change sub-operations to the persistent searches and every
// sub-operation to the post-response plugins.
//
// # Cancellation
//
// Writes check for cancellation before they start and again just before
// commit. Searches check every few candidates and between returned entries.
package backend
