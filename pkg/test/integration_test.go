package test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/repayment"
	"github.com/inbucket/courier/pkg/repayment/sqlstore"
	"github.com/inbucket/courier/pkg/rest/client"
	"github.com/inbucket/courier/pkg/rest/model"
	"github.com/inbucket/courier/pkg/server"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/storage/mem"
	"github.com/jhillyerd/goldiff"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/suite"
)

// TODO: Add suites for full mailbox naming and the SMTP relay transport.
type IntegrationSuite struct {
	suite.Suite
	client     *client.Client
	stopServer func()
}

func (s *IntegrationSuite) SetupSuite() {
	baseURL, stopServer, err := startServer(s.T().TempDir())
	s.Require().NoError(err)
	s.stopServer = stopServer
	s.client, err = client.New(baseURL)
	s.Require().NoError(err)
}

func (s *IntegrationSuite) TearDownSuite() {
	s.stopServer()
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) TestSendAndRead() {
	ctx := context.Background()
	sent, err := s.client.Send(ctx, "alice", &model.JSONSendRequestV1{
		To:       []string{"Bob <bob@courier.local>", "someone@elsewhere.example"},
		Subject:  "Quarterly report",
		BodyText: "Hello Bob",
		BodyHTML: "<p>Hello <b>Bob</b></p>",
	})
	s.Require().NoError(err)
	s.Equal("sent", sent.Status)
	s.Equal(sent.MessageID, sent.ThreadID)
	s.NotNil(sent.Date)

	// Sender keeps a SENT copy.
	out, err := s.client.Read(ctx, "alice", client.ReadOptions{MessageID: sent.MessageID})
	s.Require().NoError(err)
	s.Require().Len(out.Messages, 1)
	s.Equal([]string{"SENT"}, out.Messages[0].Labels)

	// Confirm local delivery.
	in, err := s.client.Read(ctx, "bob", client.ReadOptions{Query: `subject:"quarterly report"`})
	s.Require().NoError(err)
	s.Require().Len(in.Messages, 1)
	msg := in.Messages[0]
	s.Equal(sent.ThreadID, msg.ThreadID)
	s.NotEqual(sent.MessageID, msg.MessageID)

	// Compare to golden.
	goldiff.File(s.T(), formatMessage(msg), "testdata", "delivered.golden")

	// Mark read, then it no longer matches is:unread.
	_, err = s.client.ModifyLabels(ctx, "bob", msg.MessageID, nil, []string{"UNREAD"})
	s.Require().NoError(err)
	unread, err := s.client.Read(ctx, "bob", client.ReadOptions{Query: "is:unread"})
	s.Require().NoError(err)
	s.Empty(unread.Messages)

	source, err := s.client.GetMessageSource(ctx, "bob", msg.MessageID)
	s.Require().NoError(err)
	s.Contains(source.String(), "Subject: Quarterly report")

	s.Require().NoError(s.client.DeleteMessage(ctx, "bob", msg.MessageID))
	_, err = s.client.GetMessage(ctx, "bob", msg.MessageID)
	s.True(client.IsNotFound(err), "got %v", err)
}

func (s *IntegrationSuite) TestInvalidRequests() {
	ctx := context.Background()
	_, err := s.client.Read(ctx, "alice", client.ReadOptions{Query: "colour:red"})
	var cerr *client.Error
	s.Require().ErrorAs(err, &cerr)
	s.Equal(400, cerr.StatusCode)

	_, err = s.client.Send(ctx, "alice", &model.JSONSendRequestV1{Subject: "No one"})
	s.Require().ErrorAs(err, &cerr)
	s.Equal(400, cerr.StatusCode)
	s.Contains(cerr.Fields, "to")
	s.Contains(cerr.Fields, "body")
}

func (s *IntegrationSuite) TestDraftLifecycle() {
	ctx := context.Background()
	subject := "Plans"
	draft, err := s.client.WriteDraft(ctx, "carol", &model.JSONDraftRequestV1{
		To: []string{"dave@courier.local"}, Subject: &subject,
	})
	s.Require().NoError(err)
	s.NotEmpty(draft.DraftID)
	s.Equal(draft.MessageID, draft.ThreadID)

	body := "See you at noon"
	updated, err := s.client.WriteDraft(ctx, "carol", &model.JSONDraftRequestV1{
		DraftID: draft.DraftID, BodyText: &body,
	})
	s.Require().NoError(err)
	s.True(updated.UpdatedAt.After(draft.UpdatedAt))

	got, err := s.client.GetDraft(ctx, "carol", draft.DraftID)
	s.Require().NoError(err)
	s.Equal("Plans", got.Subject)
	s.Equal("See you at noon", got.BodyText)
	s.Equal([]string{"dave@courier.local"}, got.To)

	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	result, err := s.client.SendDraft(ctx, "carol", draft.DraftID,
		&model.JSONSendDraftRequestV1{ScheduleTime: &at})
	s.Require().NoError(err)
	s.Equal("scheduled", result.Status)
	s.Equal(draft.MessageID, result.MessageID)
	s.Require().NotNil(result.ScheduledTime)
	s.True(at.Equal(*result.ScheduledTime))

	drafts, err := s.client.ListDrafts(ctx, "carol")
	s.Require().NoError(err)
	s.Empty(drafts)

	scheduled, err := s.client.Read(ctx, "carol", client.ReadOptions{Labels: []string{"SCHEDULED"}})
	s.Require().NoError(err)
	s.Require().Len(scheduled.Messages, 1)
	s.Equal(draft.MessageID, scheduled.Messages[0].MessageID)

	// Not transmitted until due.
	inbox, err := s.client.Read(ctx, "dave", client.ReadOptions{})
	s.Require().NoError(err)
	s.Empty(inbox.Messages)
}

func (s *IntegrationSuite) TestRepayment() {
	ctx := context.Background()
	rank := 40.0
	result, err := s.client.Pay(ctx, &model.JSONRepaymentRequestV1{
		EntityName:  "Repayment",
		EntityID:    "loan-42",
		DisplayName: "Loan 42",
		RankingHint: &rank,
		Keywords:    []string{"loan", "auto"},
	})
	s.Require().NoError(err)
	s.Equal("success", result.Status)
	s.True(strings.HasPrefix(result.PaymentID, "pay_"), result.PaymentID)
	s.Require().NotNil(result.Snapshot)
	s.Equal("Loan 42", result.Snapshot.DisplayName)

	record, err := s.client.GetRepayment(ctx, "loan-42")
	s.Require().NoError(err)
	s.Equal(result.PaymentID, record.PaymentID)
	s.Equal([]string{"loan", "auto"}, record.Keywords)

	_, err = s.client.Pay(ctx, &model.JSONRepaymentRequestV1{EntityID: "loan-43"})
	var cerr *client.Error
	s.Require().ErrorAs(err, &cerr)
	s.Equal(400, cerr.StatusCode)
	s.Contains(cerr.Fields, "entity_name")

	_, err = s.client.GetRepayment(ctx, "loan-43")
	s.True(client.IsNotFound(err), "got %v", err)
}

func formatMessage(m *model.JSONMessageV1) []byte {
	b := &bytes.Buffer{}
	fmt.Fprintf(b, "Mailbox: %v\n", m.Mailbox)
	fmt.Fprintf(b, "From: %v\n", m.From)
	fmt.Fprintf(b, "To: %v\n", m.To)
	fmt.Fprintf(b, "Subject: %v\n", m.Subject)
	fmt.Fprintf(b, "Labels: %v\n", m.Labels)
	fmt.Fprintf(b, "Snippet: %v\n", m.Snippet)
	if m.BodyText != nil {
		fmt.Fprintf(b, "\nBODY TEXT:\n%v\n", strings.TrimSpace(*m.BodyText))
	}
	if m.BodyHTML != nil {
		fmt.Fprintf(b, "\nBODY HTML:\n%v\n", strings.TrimSpace(*m.BodyHTML))
	}
	return b.Bytes()
}

func startServer(dir string) (baseURL string, stop func(), err error) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	// Storage setup.
	storage.Constructors["memory"] = mem.New
	repayment.StoreConstructors["sqlite"] = sqlstore.New
	clearEnv()
	conf, err := config.Process()
	if err != nil {
		return "", nil, err
	}
	conf.Web.Addr = "127.0.0.1:0"
	conf.Lua.Path = ""
	conf.Scheduler.Interval = 0
	conf.Transport.LocalDomains = []string{"courier.local"}
	conf.Payment.Store = "sqlite"
	conf.Payment.SQLitePath = filepath.Join(dir, "courier.db")

	svcs, err := server.FullAssembly(conf)
	if err != nil {
		return "", nil, err
	}
	svcCtx, svcCancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	svcs.Start(svcCtx, func() { close(ready) })

	select {
	case <-ready:
	case err := <-svcs.Notify():
		svcCancel()
		return "", nil, err
	case <-time.After(5 * time.Second):
		svcCancel()
		return "", nil, fmt.Errorf("timeout waiting for web server")
	}

	return "http://" + svcs.WebServer.Addr().String(), func() {
		// Shut everything down.
		svcCancel()
		svcs.Stop()
	}, nil
}

// clearEnv clears environment variables, preserving any that are critical for this OS.
func clearEnv() {
	preserve := make(map[string]string)
	backup := func(k string) {
		preserve[k] = os.Getenv(k)
	}

	// Backup critical env variables.
	if runtime.GOOS == "windows" {
		backup("SYSTEMROOT")
	}

	os.Clearenv()

	for k, v := range preserve {
		_ = os.Setenv(k, v)
	}
}
