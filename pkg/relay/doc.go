// Package relay provides a REST request pipeline with a pluggable
// interceptor and recovery protocol.
//
// # Overview
//
// A Client turns a logical Request (path, method, parameters, headers) into a
// wire request, drives it through an ordered chain of interceptors, and
// classifies the outcome into a typed error taxonomy. The generic Send
// function decodes success bodies into caller types and substitutes
// registered empty values for bodiless responses.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/relaykit-io/relay/pkg/relay"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  client, err := relay.New(&relay.Config{BaseURL: "https://api.example.com"})
//	  if err != nil { log.Fatal(err) }
//
//	  type Widget struct {
//	    Name string `json:"name"`
//	  }
//
//	  widget, err := relay.Send[Widget](ctx, client, &relay.Request{Path: "/widgets/1"})
//	  if err != nil { log.Fatal(err) }
//	  _ = widget.Data
//	}
//
// # Interceptors and recovery
//
// An Interceptor exposes three hooks: WillSend (mutate the wire request),
// DidReceive (observe the response; failures are swallowed), and OnError
// (substitute a successful response for a failed one, e.g. token refresh plus
// retry). OnError hooks receive the chain-bypassing Doer and must retry
// through it; the raw path runs no hooks, which is what guarantees a recovery
// attempt terminates instead of recursing through the chain.
//
// # Errors
//
// Outcomes are classified into *ClientError (4xx, with a best-effort decoded
// error model), *ServerError (5xx), *UnknownError (transport failures and
// unclassifiable statuses), *EmptyResponseError and *DecodeError. Helpers
// such as IsNotFound and IsUnauthorized branch on common cases.
//
// # Caching
//
// A pluggable Cache abstraction (in-memory, NATS JetStream KV, layered
// chain) stores successful GET responses; the client exposes explicit
// lookup, remove, size and clear operations.
package relay
