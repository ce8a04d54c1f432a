// Package server wires the Courier services together and manages their lifecycle.
package server

import (
	"context"
	"fmt"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/extension/luahost"
	"github.com/inbucket/courier/pkg/ident"
	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/msghub"
	"github.com/inbucket/courier/pkg/policy"
	"github.com/inbucket/courier/pkg/repayment"
	"github.com/inbucket/courier/pkg/rest"
	"github.com/inbucket/courier/pkg/server/web"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/storage/mem"
	"github.com/inbucket/courier/pkg/transport"
	"github.com/inbucket/courier/pkg/validation"
	"github.com/rs/zerolog/log"
)

// Services holds the configured services.
type Services struct {
	ExtHost          *extension.Host
	LuaHost          *luahost.Host
	MsgHub           *msghub.Hub
	Manager          *message.StoreManager
	Repayments       *repayment.Service
	RetentionScanner *storage.RetentionScanner
	Scheduler        *message.Scheduler
	WebServer        *web.Server

	shutdown chan bool
}

// FullAssembly wires up a complete Courier environment.
func FullAssembly(conf *config.Root) (*Services, error) {
	// Configure extensions.
	extHost := extension.NewHost()
	luaHost, err := luahost.New(conf.Lua, extHost)
	if err != nil {
		return nil, fmt.Errorf("lua init: %w", err)
	}

	ids, err := ident.NewGenerator(conf.Payment.Node)
	if err != nil {
		return nil, err
	}
	v, err := validation.New()
	if err != nil {
		return nil, err
	}

	// Configure storage.
	store, err := storage.FromConfig(conf.Storage, extHost)
	if err != nil {
		return nil, err
	}
	paymentStore, err := repayment.StoreFromConfig(conf.Payment)
	if err != nil {
		return nil, err
	}
	processor, err := repayment.ProcessorFromConfig(conf.Payment)
	if err != nil {
		_ = paymentStore.Close()
		return nil, err
	}

	addrPolicy := &policy.Addressing{Mail: conf.Mail, LocalDomains: conf.Transport.LocalDomains}
	sender, err := transport.FromConfig(conf.Transport, store, addrPolicy, ids, extHost)
	if err != nil {
		_ = paymentStore.Close()
		return nil, err
	}

	msgHub := msghub.New(conf.Web.MonitorHistory, extHost)
	mmanager := &message.StoreManager{
		Config:     conf.Mail,
		AddrPolicy: addrPolicy,
		Store:      store,
		Drafts:     mem.NewDraftStore(),
		Transport:  sender,
		ExtHost:    extHost,
		IDs:        ids,
		Validator:  v,
	}
	repayments := &repayment.Service{
		Store:     paymentStore,
		Processor: processor,
		Validator: v,
		IDs:       ids,
		ExtHost:   extHost,
	}

	shutdown := make(chan bool)
	retentionScanner := storage.NewRetentionScanner(conf.Storage, store, shutdown)
	scheduler := message.NewScheduler(conf.Scheduler, mmanager, shutdown)

	// Configure routes and HTTP server.
	prefix := web.MakePathPrefixer(conf.Web.BasePath)
	rest.SetupRoutes(web.Router.PathPrefix(prefix("/api/")).Subrouter())
	webServer := web.NewServer(conf, mmanager, repayments, msgHub)

	return &Services{
		ExtHost:          extHost,
		LuaHost:          luaHost,
		MsgHub:           msgHub,
		Manager:          mmanager,
		Repayments:       repayments,
		RetentionScanner: retentionScanner,
		Scheduler:        scheduler,
		WebServer:        webServer,
		shutdown:         shutdown,
	}, nil
}

// Start all services, returns immediately.  readyFunc is called once the web server is
// listening.
func (s *Services) Start(ctx context.Context, readyFunc func()) {
	go s.MsgHub.Start(ctx)
	go s.WebServer.Start(ctx, readyFunc)
	s.RetentionScanner.Start()
	s.Scheduler.Start(ctx)
}

// Notify returns the error notification channel of the web server, the only service that can
// fail after startup.
func (s *Services) Notify() <-chan error {
	return s.WebServer.Notify()
}

// Stop signals the background scanners to exit, waits for them, then closes the stores.  The
// caller cancels the context passed to Start to stop the web server and message hub.
func (s *Services) Stop() {
	close(s.shutdown)
	s.Scheduler.Join()
	s.RetentionScanner.Join()
	if err := s.Repayments.Store.Close(); err != nil {
		log.Warn().Str("module", "server").Str("phase", "shutdown").Err(err).
			Msg("Failed to close repayment store")
	}
}
