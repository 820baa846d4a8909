// Package models holds the GORM rows behind the billing and integration
// repositories. Domain types carry no ORM tags; each model converts to and
// from its domain type with ToDomain and a FromDomain constructor.
//
//   - base.go: identity columns shared by projects and companies
//   - token.go: the OAuth credential of an accounting realm
//   - billing.go: projects, companies, project parties, pay applications, change orders
package models
