// Package broker implements the small JSON pub/sub protocol spoken by the
// browser terminal over a single WebSocket.
//
// Clients SUBSCRIBE to "/topic/..." destinations and SEND to application
// destinations registered with Handle or HandleAsync. Anything published to a
// topic is delivered to every client subscribed to it. Each client has one
// writer goroutine fed by a bounded queue; a client that cannot keep up is
// disconnected instead of stalling publishers.
//
// Log lines use the [broker] prefix.
package broker
