// Package integration contains the Integration bounded context.
// This context manages the connection to the external accounting system.
//
// Key concepts:
//   - OAuthToken: the renewable credential for one realm and its state machine
//   - BillingParent / BillingChild: the remote account a project is billed under
//     and the job nested beneath it
//   - Gateways: port interfaces for parties, jobs, invoices and reports
//   - Error taxonomy: sentinel errors shared by adapters and services
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
