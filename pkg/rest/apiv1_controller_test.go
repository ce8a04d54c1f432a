package rest

import (
	"bytes"
	"encoding/json"
	"net/mail"
	"testing"
	"time"

	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/repayment"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/test"
	"github.com/jhillyerd/goldiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://localhost/api/v1"

var sentDate = time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)

func sampleMessage(mailbox, id string, withBody bool) *message.Message {
	return &message.Message{
		MessageMetadata: event.MessageMetadata{
			Mailbox:  mailbox,
			ID:       id,
			ThreadID: id,
			From:     &mail.Address{Name: "Alice", Address: "alice@example.com"},
			To:       []*mail.Address{{Address: "bob@example.com"}},
			Date:     sentDate,
			Subject:  "Quarterly report",
			Snippet:  "Numbers look good",
			Labels:   []string{"INBOX", "UNREAD"},
			Size:     512,
		},
		BodyText: "Numbers look good",
		BodyHTML: "<p>Numbers look good</p>",
		Attachments: []message.AttachmentInfo{
			{ID: id + "-0", Filename: "report.pdf", MimeType: "application/pdf", SizeBytes: 1024},
		},
		HasBody: withBody,
	}
}

func TestRestMailboxRead(t *testing.T) {
	mm := test.NewManager()
	mm.AddMessage("good", sampleMessage("good", "0002", true))
	mm.AddMessage("good", sampleMessage("good", "0001", false))
	setupWebServer(mm, &test.RepaymentMock{})

	t.Run("invalid mailbox", func(t *testing.T) {
		w, err := testRestGet(baseURL + "/mailbox/user@host@domain.com/messages")
		require.NoError(t, err)
		assert.Equal(t, 400, w.Code)
		result := decodeJSON(t, w)
		decodedStringEquals(t, result, "error", "validation failed")
		_, msg := getDecodedPath(result, "fields", "mailbox")
		assert.Empty(t, msg)
	})

	t.Run("empty mailbox", func(t *testing.T) {
		w, err := testRestGet(baseURL + "/mailbox/empty/messages")
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		decodedLenEquals(t, decodeJSON(t, w), "messages", 0)
	})

	t.Run("internal error", func(t *testing.T) {
		w, err := testRestGet(baseURL + "/mailbox/messageserr/messages")
		require.NoError(t, err)
		assert.Equal(t, 500, w.Code)
		decodedStringEquals(t, decodeJSON(t, w), "error", "Internal Server Error")
	})

	t.Run("messages", func(t *testing.T) {
		w, err := testRestGet(baseURL + "/mailbox/good/messages")
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		result := decodeJSON(t, w)
		decodedLenEquals(t, result, "messages", 2)
		decodedStringEquals(t, result, "messages/[0]/message_id", "0002")
		decodedStringEquals(t, result, "messages/[0]/from", "Alice <alice@example.com>")
		decodedStringEquals(t, result, "messages/[0]/to/[0]", "bob@example.com")
		decodedStringEquals(t, result, "messages/[0]/date", "2026-05-10T15:00:00Z")
		decodedStringEquals(t, result, "messages/[0]/body_html", "<p>Numbers look good</p>")
		decodedStringEquals(t, result, "messages/[0]/attachments/[0]/attachment_id", "0002-0")
		decodedNumberEquals(t, result, "messages/[0]/attachments/[0]/size_bytes", 1024)
		decodedNumberEquals(t, result, "messages/[0]/size", 512)
		decodedStringEquals(t, result, "messages/[0]/labels/[1]", "UNREAD")

		// Body omitted.
		decodedStringEquals(t, result, "messages/[1]/snippet", "Numbers look good")
		_, msg := getDecodedPath(result, "messages", "[1]", "body_text")
		assert.Equal(t, "/messages/[1]/body_text is missing", msg)
		_, msg = getDecodedPath(result, "messages", "[1]", "attachments")
		assert.Equal(t, "/messages/[1]/attachments is missing", msg)
	})

	t.Run("query parameters", func(t *testing.T) {
		w, err := testRestGet(baseURL + "/mailbox/good/messages" +
			"?query=from%3Aalice&labels=inbox,%20work&labels=unread&max_results=5&include_body=false")
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		assert.Equal(t, "from:alice", mm.LastRead.Query)
		assert.Equal(t, []string{"inbox", "work", "unread"}, mm.LastRead.Labels)
		assert.Equal(t, 5, mm.LastRead.MaxResults)
		require.NotNil(t, mm.LastRead.IncludeBody)
		assert.False(t, *mm.LastRead.IncludeBody)
	})

	t.Run("message id", func(t *testing.T) {
		w, err := testRestGet(baseURL + "/mailbox/good/messages?message_id=0001")
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		result := decodeJSON(t, w)
		decodedLenEquals(t, result, "messages", 1)
		decodedStringEquals(t, result, "messages/[0]/message_id", "0001")

		w, err = testRestGet(baseURL + "/mailbox/good/messages?message_id=9999")
		require.NoError(t, err)
		assert.Equal(t, 404, w.Code)
	})

	t.Run("bad parameters", func(t *testing.T) {
		w, err := testRestGet(baseURL + "/mailbox/good/messages?max_results=ten&include_body=maybe")
		require.NoError(t, err)
		assert.Equal(t, 400, w.Code)
		result := decodeJSON(t, w)
		decodedLenEquals(t, result, "fields", 2)
		decodedStringEquals(t, result, "fields/max_results", "max_results must be an integer")

		w, err = testRestGet(baseURL + "/mailbox/good/messages?max_results=-1")
		require.NoError(t, err)
		assert.Equal(t, 400, w.Code)
	})
}

func TestRestMailboxReadGolden(t *testing.T) {
	mm := test.NewManager()
	mm.AddMessage("golden", sampleMessage("golden", "0001", true))
	setupWebServer(mm, &test.RepaymentMock{})

	w, err := testRestGet(baseURL + "/mailbox/golden/messages")
	require.NoError(t, err)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	got := &bytes.Buffer{}
	require.NoError(t, json.Indent(got, w.Body.Bytes(), "", "  "))
	goldiff.File(t, got.Bytes(), "testdata", "read.golden")
}

func TestRestMessageShow(t *testing.T) {
	mm := test.NewManager()
	mm.AddMessage("good", sampleMessage("good", "0001", true))
	setupWebServer(mm, &test.RepaymentMock{})

	w, err := testRestGet(baseURL + "/mailbox/good/messages/0001")
	require.NoError(t, err)
	assert.Equal(t, 200, w.Code)
	result := decodeJSON(t, w)
	decodedStringEquals(t, result, "message_id", "0001")
	decodedStringEquals(t, result, "body_text", "Numbers look good")

	w, err = testRestGet(baseURL + "/mailbox/good/messages/0002")
	require.NoError(t, err)
	assert.Equal(t, 404, w.Code)
	decodedStringEquals(t, decodeJSON(t, w), "error", "get message good/0002: message does not exist")

	w, err = testRestGet(baseURL + "/mailbox/messageerr/messages/0001")
	require.NoError(t, err)
	assert.Equal(t, 500, w.Code)
}

func TestRestMessageLabels(t *testing.T) {
	mm := test.NewManager()
	mm.AddMessage("good", sampleMessage("good", "0001", true))
	setupWebServer(mm, &test.RepaymentMock{})

	w, err := testRestPatch(baseURL+"/mailbox/good/messages/0001",
		`{"add_labels":["work"],"remove_labels":["unread"]}`)
	require.NoError(t, err)
	assert.Equal(t, 200, w.Code)
	result := decodeJSON(t, w)
	decodedLenEquals(t, result, "labels", 2)
	decodedStringEquals(t, result, "labels/[0]", "INBOX")
	decodedStringEquals(t, result, "labels/[1]", "WORK")

	w, err = testRestPatch(baseURL+"/mailbox/good/messages/0001", `{"add_labels":`)
	require.NoError(t, err)
	assert.Equal(t, 400, w.Code)
	_, msg := getDecodedPath(decodeJSON(t, w), "fields", "body")
	assert.Empty(t, msg)

	w, err = testRestPatch(baseURL+"/mailbox/good/messages/0002", `{"add_labels":["work"]}`)
	require.NoError(t, err)
	assert.Equal(t, 404, w.Code)
}

func TestRestMessageDelete(t *testing.T) {
	mm := test.NewManager()
	mm.AddMessage("good", sampleMessage("good", "0001", true))
	setupWebServer(mm, &test.RepaymentMock{})

	w, err := testRestDelete(baseURL + "/mailbox/good/messages/0001")
	require.NoError(t, err)
	assert.Equal(t, 200, w.Code)
	_, err = mm.GetMessage("good", "0001")
	assert.ErrorIs(t, err, storage.ErrNotExist)

	w, err = testRestDelete(baseURL + "/mailbox/good/messages/0001")
	require.NoError(t, err)
	assert.Equal(t, 404, w.Code)
}

func TestRestMessageSource(t *testing.T) {
	mm := test.NewManager()
	mm.AddSource("good", "0001", "Subject: hello\r\n\r\nbody\r\n")
	setupWebServer(mm, &test.RepaymentMock{})

	w, err := testRestGet(baseURL + "/mailbox/good/messages/0001/source")
	require.NoError(t, err)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Subject: hello\r\n\r\nbody\r\n", w.Body.String())

	w, err = testRestGet(baseURL + "/mailbox/good/messages/0002/source")
	require.NoError(t, err)
	assert.Equal(t, 404, w.Code)
}

func TestRestMailboxPurge(t *testing.T) {
	mm := test.NewManager()
	mm.AddMessage("good", sampleMessage("good", "0001", true))
	setupWebServer(mm, &test.RepaymentMock{})

	w, err := testRestDelete(baseURL + "/mailbox/good")
	require.NoError(t, err)
	assert.Equal(t, 200, w.Code)
	_, err = mm.GetMessage("good", "0001")
	assert.ErrorIs(t, err, storage.ErrNotExist)
}

func TestRestSend(t *testing.T) {
	mm := test.NewManager()
	setupWebServer(mm, &test.RepaymentMock{})

	t.Run("sent", func(t *testing.T) {
		mm.SendResult = &message.SendResult{
			Status: message.StatusSent, MessageID: "0007", ThreadID: "0003", Date: sentDate,
		}
		w, err := testRestPost(baseURL+"/mailbox/good/send", `{
			"to": ["bob@example.com"],
			"subject": "Hi",
			"body_text": "Hello",
			"priority": "high",
			"headers": {"X-Campaign": "spring"},
			"attachments": [{"file_id": "0001-0"}]
		}`)
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		result := decodeJSON(t, w)
		decodedStringEquals(t, result, "status", "sent")
		decodedStringEquals(t, result, "message_id", "0007")
		decodedStringEquals(t, result, "thread_id", "0003")
		decodedStringEquals(t, result, "date", "2026-05-10T15:00:00Z")
		_, msg := getDecodedPath(result, "scheduled_time")
		assert.NotEmpty(t, msg)

		require.Len(t, mm.Sent, 1)
		got := mm.Sent[0]
		assert.Equal(t, []string{"bob@example.com"}, got.To)
		assert.Equal(t, message.PriorityHigh, got.Priority)
		assert.Equal(t, "spring", got.Headers["X-Campaign"])
		assert.Equal(t, []message.AttachmentSpec{{FileID: "0001-0"}}, got.Attachments)
		assert.Nil(t, got.ScheduleTime)
	})

	t.Run("scheduled", func(t *testing.T) {
		at := time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC)
		mm.SendResult = &message.SendResult{
			Status: message.StatusScheduled, MessageID: "0008", ThreadID: "0008", ScheduledTime: &at,
		}
		w, err := testRestPost(baseURL+"/mailbox/good/send", `{
			"to": ["bob@example.com"],
			"subject": "Later",
			"body_text": "Hello",
			"schedule_time": "2026-12-01T09:00:00Z"
		}`)
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		result := decodeJSON(t, w)
		decodedStringEquals(t, result, "status", "scheduled")
		decodedStringEquals(t, result, "scheduled_time", "2026-12-01T09:00:00Z")
		_, msg := getDecodedPath(result, "date")
		assert.NotEmpty(t, msg)

		got := mm.Sent[len(mm.Sent)-1]
		require.NotNil(t, got.ScheduleTime)
		assert.True(t, at.Equal(*got.ScheduleTime))
	})

	t.Run("invalid", func(t *testing.T) {
		w, err := testRestPost(baseURL+"/mailbox/good/send", `{"subject": "Hi"}`)
		require.NoError(t, err)
		assert.Equal(t, 400, w.Code)
		decodedStringEquals(t, decodeJSON(t, w), "fields/to", "to is a required field")

		w, err = testRestPost(baseURL+"/mailbox/good/send", `{"to": "bob@example.com"}`)
		require.NoError(t, err)
		assert.Equal(t, 400, w.Code)
		_, msg := getDecodedPath(decodeJSON(t, w), "fields", "to")
		assert.Empty(t, msg)
	})

	t.Run("internal error", func(t *testing.T) {
		w, err := testRestPost(baseURL+"/mailbox/messageerr/send", `{"to": ["bob@example.com"]}`)
		require.NoError(t, err)
		assert.Equal(t, 500, w.Code)
	})
}

func TestRestDrafts(t *testing.T) {
	mm := test.NewManager()
	mm.AddDraft("good", &storage.Draft{
		Mailbox:     "good",
		DraftID:     "d-1",
		MessageID:   "0009",
		ThreadID:    "0009",
		To:          []*mail.Address{{Name: "Bob", Address: "bob@example.com"}},
		Subject:     "Plans",
		BodyText:    "Draft body",
		Attachments: []storage.Attachment{{Filename: "a.txt", MimeType: "text/plain", Content: []byte("abc")}},
		CreatedAt:   sentDate,
		UpdatedAt:   sentDate,
	})
	setupWebServer(mm, &test.RepaymentMock{})

	t.Run("create", func(t *testing.T) {
		w, err := testRestPost(baseURL+"/mailbox/good/drafts", `{"subject": "New", "to": []}`)
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		decodedStringEquals(t, decodeJSON(t, w), "draft_id", "draft-1")

		got := mm.Drafted[len(mm.Drafted)-1]
		assert.Empty(t, got.DraftID)
		require.NotNil(t, got.Subject)
		assert.Equal(t, "New", *got.Subject)
		assert.NotNil(t, got.To, "empty list must be distinguishable from absent")
		assert.Nil(t, got.Cc)
		assert.Nil(t, got.BodyText)
	})

	t.Run("update", func(t *testing.T) {
		w, err := testRestPost(baseURL+"/mailbox/good/drafts", `{"draft_id": "d-1", "body_text": ""}`)
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		decodedStringEquals(t, decodeJSON(t, w), "draft_id", "d-1")
		got := mm.Drafted[len(mm.Drafted)-1]
		require.NotNil(t, got.BodyText)
		assert.Equal(t, "", *got.BodyText)

		w, err = testRestPost(baseURL+"/mailbox/good/drafts", `{"draft_id": "d-404"}`)
		require.NoError(t, err)
		assert.Equal(t, 404, w.Code)
		decodedStringEquals(t, decodeJSON(t, w), "error",
			"write draft in good: draft does not exist")
	})

	t.Run("list and show", func(t *testing.T) {
		w, err := testRestGet(baseURL + "/mailbox/good/drafts")
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		result := decodeJSON(t, w)
		decodedLenEquals(t, result, "", 1)
		decodedStringEquals(t, result, "[0]/draft_id", "d-1")

		w, err = testRestGet(baseURL + "/mailbox/good/drafts/d-1")
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		result = decodeJSON(t, w)
		decodedStringEquals(t, result, "to/[0]", "Bob <bob@example.com>")
		decodedStringEquals(t, result, "attachments/[0]/filename", "a.txt")
		decodedNumberEquals(t, result, "attachments/[0]/size_bytes", 3)
		decodedStringEquals(t, result, "updated_at", "2026-05-10T15:00:00Z")

		w, err = testRestGet(baseURL + "/mailbox/good/drafts/d-404")
		require.NoError(t, err)
		assert.Equal(t, 404, w.Code)
	})

	t.Run("send", func(t *testing.T) {
		w, err := testRestPost(baseURL+"/mailbox/good/drafts/d-1/send",
			`{"schedule_time": "2026-12-01T09:00:00Z"}`)
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		result := decodeJSON(t, w)
		decodedStringEquals(t, result, "status", "scheduled")
		decodedStringEquals(t, result, "message_id", "0009")

		w, err = testRestPost(baseURL+"/mailbox/good/drafts/d-1/send", "")
		require.NoError(t, err)
		assert.Equal(t, 404, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		mm.AddDraft("good", &storage.Draft{Mailbox: "good", DraftID: "d-2"})
		w, err := testRestDelete(baseURL + "/mailbox/good/drafts/d-2")
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)

		w, err = testRestDelete(baseURL + "/mailbox/good/drafts/d-2")
		require.NoError(t, err)
		assert.Equal(t, 404, w.Code)
	})
}

func TestRestRepayments(t *testing.T) {
	processed := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	rank := 50.0
	record := &repayment.Record{
		EntityID:    "loan-7",
		EntityName:  "Repayment",
		DisplayName: "Loan 7",
		RankingHint: &rank,
		PaymentID:   "pay_abc",
		UpdatedAt:   processed,
	}
	rm := &test.RepaymentMock{}
	rm.On("Pay", mock.Anything, mock.MatchedBy(func(req repayment.Request) bool {
		return req.EntityID == "loan-7"
	})).Return(&repayment.Result{
		Status:      repayment.StatusSuccess,
		PaymentID:   "pay_abc",
		EntityID:    "loan-7",
		ProcessedAt: processed,
		Snapshot:    record,
	}, nil)
	rm.On("Pay", mock.Anything, mock.MatchedBy(func(req repayment.Request) bool {
		return req.EntityID == "loan-8"
	})).Return(&repayment.Result{
		Status:      repayment.StatusFailed,
		PaymentID:   "pay_def",
		EntityID:    "loan-8",
		ProcessedAt: processed,
		Message:     "card declined",
	}, nil)
	rm.On("Get", mock.Anything, "loan-7").Return(record, nil)
	rm.On("Get", mock.Anything, "loan-9").Return(nil, storage.ErrNotExist)
	setupWebServer(test.NewManager(), rm)

	t.Run("success", func(t *testing.T) {
		w, err := testRestPost(baseURL+"/repayments",
			`{"entity_name": "Repayment", "entity_id": "loan-7", "ranking_hint": 50}`)
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		result := decodeJSON(t, w)
		decodedStringEquals(t, result, "status", "success")
		decodedStringEquals(t, result, "payment_id", "pay_abc")
		decodedStringEquals(t, result, "processed_at", "2026-04-01T08:00:00Z")
		decodedStringEquals(t, result, "snapshot/display_name", "Loan 7")
		decodedNumberEquals(t, result, "snapshot/ranking_hint", 50)
	})

	t.Run("failed is not an error", func(t *testing.T) {
		w, err := testRestPost(baseURL+"/repayments", `{"entity_name": "Repayment", "entity_id": "loan-8"}`)
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		result := decodeJSON(t, w)
		decodedStringEquals(t, result, "status", "failed")
		decodedStringEquals(t, result, "message", "card declined")
		val, msg := getDecodedPath(result, "snapshot")
		assert.Empty(t, msg)
		assert.Nil(t, val)
	})

	t.Run("bad body", func(t *testing.T) {
		w, err := testRestPost(baseURL+"/repayments", `{"entity_id": 7}`)
		require.NoError(t, err)
		assert.Equal(t, 400, w.Code)
		_, msg := getDecodedPath(decodeJSON(t, w), "fields", "entity_id")
		assert.Empty(t, msg)
	})

	t.Run("get", func(t *testing.T) {
		w, err := testRestGet(baseURL + "/repayments/loan-7")
		require.NoError(t, err)
		assert.Equal(t, 200, w.Code)
		decodedStringEquals(t, decodeJSON(t, w), "payment_id", "pay_abc")

		w, err = testRestGet(baseURL + "/repayments/loan-9")
		require.NoError(t, err)
		assert.Equal(t, 404, w.Code)
	})

	rm.AssertExpectations(t)
}

func TestRestNoRoute(t *testing.T) {
	setupWebServer(test.NewManager(), &test.RepaymentMock{})

	w, err := testRestGet(baseURL + "/nothing")
	require.NoError(t, err)
	assert.Equal(t, 404, w.Code)
	decodedStringEquals(t, decodeJSON(t, w), "error", "Not Found")

	w, err = testRestPatch(baseURL+"/repayments", "{}")
	require.NoError(t, err)
	assert.Equal(t, 405, w.Code)
	decodedStringEquals(t, decodeJSON(t, w), "error", "Method Not Allowed")

	w, err = testRestPost(baseURL+"/mailbox/good/messages", "{}")
	require.NoError(t, err)
	assert.Equal(t, 405, w.Code)

	w, err = testRestGet(baseURL + "/mailbox/good/unknown")
	require.NoError(t, err)
	assert.Equal(t, 404, w.Code)
	decodedStringEquals(t, decodeJSON(t, w), "error", "Not Found")
}
