package rest

import (
	"github.com/gorilla/mux"
	"github.com/inbucket/courier/pkg/server/web"
)

// SetupRoutes populates the routes for the REST interface
func SetupRoutes(r *mux.Router) {
	web.SetNoMatchHandlers(r)

	// Messages
	r.Path("/v1/mailbox/{name}").Handler(
		web.Handler(MailboxPurgeV1)).Name("MailboxPurgeV1").Methods("DELETE")
	r.Path("/v1/mailbox/{name}/messages").Handler(
		web.Handler(MailboxReadV1)).Name("MailboxReadV1").Methods("GET")
	r.Path("/v1/mailbox/{name}/messages/{id}").Handler(
		web.Handler(MailboxShowV1)).Name("MailboxShowV1").Methods("GET")
	r.Path("/v1/mailbox/{name}/messages/{id}").Handler(
		web.Handler(MailboxLabelsV1)).Name("MailboxLabelsV1").Methods("PATCH")
	r.Path("/v1/mailbox/{name}/messages/{id}").Handler(
		web.Handler(MailboxDeleteV1)).Name("MailboxDeleteV1").Methods("DELETE")
	r.Path("/v1/mailbox/{name}/messages/{id}/source").Handler(
		web.Handler(MailboxSourceV1)).Name("MailboxSourceV1").Methods("GET")
	r.Path("/v1/mailbox/{name}/send").Handler(
		web.Handler(MailboxSendV1)).Name("MailboxSendV1").Methods("POST")

	// Drafts
	r.Path("/v1/mailbox/{name}/drafts").Handler(
		web.Handler(DraftWriteV1)).Name("DraftWriteV1").Methods("POST")
	r.Path("/v1/mailbox/{name}/drafts").Handler(
		web.Handler(DraftListV1)).Name("DraftListV1").Methods("GET")
	r.Path("/v1/mailbox/{name}/drafts/{id}").Handler(
		web.Handler(DraftShowV1)).Name("DraftShowV1").Methods("GET")
	r.Path("/v1/mailbox/{name}/drafts/{id}").Handler(
		web.Handler(DraftDeleteV1)).Name("DraftDeleteV1").Methods("DELETE")
	r.Path("/v1/mailbox/{name}/drafts/{id}/send").Handler(
		web.Handler(DraftSendV1)).Name("DraftSendV1").Methods("POST")

	// Repayments
	r.Path("/v1/repayments").Handler(
		web.Handler(RepaymentPayV1)).Name("RepaymentPayV1").Methods("POST")
	r.Path("/v1/repayments/{entity_id}").Handler(
		web.Handler(RepaymentShowV1)).Name("RepaymentShowV1").Methods("GET")

	// Monitor
	r.Path("/v1/monitor/messages").Handler(
		web.Handler(MonitorAllMessagesV1)).Name("MonitorAllMessagesV1").Methods("GET")
	r.Path("/v1/monitor/messages/{name}").Handler(
		web.Handler(MonitorMailboxMessagesV1)).Name("MonitorMailboxMessagesV1").Methods("GET")
}
