package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/msghub"
	"github.com/inbucket/courier/pkg/repayment"
)

// Context is passed into every request handler function.
type Context struct {
	Vars       map[string]string
	MsgHub     *msghub.Hub
	Manager    message.Manager
	Repayments repayment.Manager
	RootConfig *config.Root
}

// Close the Context (currently does nothing)
func (c *Context) Close() {
	// Do nothing
}

// NewContext returns a Context for the given HTTP Request.
func NewContext(req *http.Request) (*Context, error) {
	vars := mux.Vars(req)
	ctx := &Context{
		Vars:       vars,
		MsgHub:     msgHub,
		Manager:    manager,
		Repayments: repayments,
		RootConfig: rootConfig,
	}
	return ctx, nil
}
