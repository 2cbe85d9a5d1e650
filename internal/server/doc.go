// Package server provides the client connections the operation engine
// talks to.
//
// # Overview
//
// A Server owns the connections and the collaborators they share: the
// engine, the network group that routes requests and an optional work
// queue. Reading and encoding protocol messages is left to a Sink, so the
// package carries no transport of its own.
//
//	srv := server.New(engine, group, queue, server.NewOptions(), logger)
//	conn, err := srv.Accept(sink)
//	if err != nil {
//	    return err
//	}
//	conn.Handle(1, nil, &ldap.BindRequest{Version: 3, Name: dn, SimplePassword: pw})
//
// # Connection State
//
// Each Connection tracks:
//
//   - the operation ID counter, incremented for every request
//   - the authenticated DN, reset by a bind and set when it succeeds
//   - the size and time limits applied to searches
//   - the outstanding operations, keyed by message ID
//
// # Abandon and Cancel
//
// Abandon (RFC 4511) and Cancel (RFC 3909) look up the outstanding
// operation by message ID and hand it to the engine. Abandon never answers
// the abandoned operation; Cancel lets it answer with CANCELED. A bind
// cancels every other outstanding operation of its connection before it
// runs.
//
// # Disconnection
//
// Disconnect closes the sink and cancels everything still outstanding in
// the background. It may be called from inside a running operation.
package server
