// Package host models the home automation host the panel talks to: a
// service layer addressed by domain and service name, and a store of entity
// states that includes persistent notifications.
//
// Two implementations of Connection are provided:
//
//   - Registry is an in-process host. Services register handlers with it
//     and it owns the entity state store.
//   - MQTTConnection reaches a Registry in another process that has been
//     exposed with ServeMQTT.
//
// Service calls are request/response. A handler rejects a call by returning
// a *ServiceError carrying a message meant for the user.
package host
