package test

import (
	"bytes"
	"io"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory returns a new store for the test suite.
type StoreFactory func(config.Storage) (store storage.Store, destroy func(), err error)

// StoreSuite runs a set of general tests on the provided Store.
func StoreSuite(t *testing.T, factory StoreFactory) {
	testCases := []struct {
		name string
		test func(*testing.T, storage.Store)
		conf config.Storage
	}{
		{"metadata", testMetadata, config.Storage{}},
		{"content", testContent, config.Storage{}},
		{"assigned id", testAssignedID, config.Storage{}},
		{"delivery order", testDeliveryOrder, config.Storage{}},
		{"labels", testLabels, config.Storage{}},
		{"mark sent", testMarkSent, config.Storage{}},
		{"size", testSize, config.Storage{}},
		{"delete", testDelete, config.Storage{}},
		{"purge", testPurge, config.Storage{}},
		{"cap=10", testMsgCap, config.Storage{MailboxMsgCap: 10}},
		{"cap=0", testNoMsgCap, config.Storage{MailboxMsgCap: 0}},
		{"visit mailboxes", testVisitMailboxes, config.Storage{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, destroy, err := factory(tc.conf)
			require.NoError(t, err)
			tc.test(t, store)
			destroy()
		})
	}
}

// testMetadata verifies message metadata is stored and retrieved correctly.
func testMetadata(t *testing.T, store storage.Store) {
	mailbox := "testmailbox"
	from := &mail.Address{Name: "From Person", Address: "from@person.com"}
	to := []*mail.Address{
		{Name: "One Person", Address: "one@a.person.com"},
		{Name: "Two Person", Address: "two@b.person.com"},
	}
	cc := []*mail.Address{{Address: "cc@person.com"}}
	bcc := []*mail.Address{{Address: "bcc@person.com"}}
	date := time.Now()
	scheduled := date.Add(time.Hour)
	subject := "fantastic test subject line"
	content := "doesn't matter"
	delivery := &message.Delivery{
		Meta: event.MessageMetadata{
			// ID and Size will be determined by the Store.
			Mailbox:     mailbox,
			ThreadID:    "thread-1",
			From:        from,
			To:          to,
			Cc:          cc,
			Bcc:         bcc,
			Date:        date,
			Subject:     subject,
			Snippet:     "snippet",
			Labels:      []string{"scheduled", "Work"},
			ScheduledAt: scheduled,
		},
		Reader: strings.NewReader(content),
	}
	id, err := store.AddMessage(delivery)
	require.NoError(t, err)
	require.NotEmpty(t, id, "Expected AddMessage() to return non-empty ID string")

	// Retrieve and validate the message.
	sm, err := store.GetMessage(mailbox, id)
	require.NoError(t, err)
	assert.Equal(t, mailbox, sm.Mailbox())
	assert.Equal(t, id, sm.ID())
	assert.Equal(t, "thread-1", sm.ThreadID())
	assert.Equal(t, from, sm.From())
	assert.Equal(t, to, sm.To())
	assert.Equal(t, cc, sm.Cc())
	assert.Equal(t, bcc, sm.Bcc())
	assert.True(t, sm.Date().Equal(date), "got date %v, want: %v", sm.Date(), date)
	assert.True(t, sm.ScheduledAt().Equal(scheduled))
	assert.Equal(t, subject, sm.Subject())
	assert.Equal(t, "snippet", sm.Snippet())
	assert.Equal(t, []string{"SCHEDULED", "WORK"}, sm.Labels())
	assert.Equal(t, int64(len(content)), sm.Size())
}

// testContent generates some binary content and makes sure it is correctly retrieved.
func testContent(t *testing.T, store storage.Store) {
	content := make([]byte, 5000)
	for i := range content {
		content[i] = byte(i % 256)
	}
	mailbox := "testmailbox"
	delivery := &message.Delivery{
		Meta: event.MessageMetadata{
			Mailbox: mailbox,
			From:    &mail.Address{Name: "From Person", Address: "from@person.com"},
			To:      []*mail.Address{{Name: "One Person", Address: "one@a.person.com"}},
			Date:    time.Now(),
			Subject: "fantastic test subject line",
		},
		Reader: bytes.NewReader(content),
	}
	id, err := store.AddMessage(delivery)
	require.NoError(t, err)

	// Get and check.
	m, err := store.GetMessage(mailbox, id)
	require.NoError(t, err)
	r, err := m.Source()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	_ = r.Close()
	assert.Equal(t, content, got)
}

// testAssignedID verifies caller supplied IDs are kept and may not be reused, and that the thread
// defaults to the message ID.
func testAssignedID(t *testing.T, store storage.Store) {
	mailbox := "fred"
	delivery := &message.Delivery{
		Meta:   event.MessageMetadata{Mailbox: mailbox, ID: "1234567890", Subject: "x"},
		Reader: strings.NewReader("x"),
	}
	id, err := store.AddMessage(delivery)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", id)

	m, err := store.GetMessage(mailbox, id)
	require.NoError(t, err)
	assert.Equal(t, id, m.ThreadID())

	delivery.Reader = strings.NewReader("x")
	_, err = store.AddMessage(delivery)
	assert.ErrorIs(t, err, storage.ErrExists)
}

// testDeliveryOrder delivers several messages to the same mailbox, meanwhile querying its contents
// with a new GetMessages call each cycle.
func testDeliveryOrder(t *testing.T, store storage.Store) {
	mailbox := "fred"
	subjects := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for i, subj := range subjects {
		// Check mailbox count.
		GetAndCountMessages(t, store, mailbox, i)
		DeliverToStore(t, store, mailbox, subj, time.Now())
	}
	// Confirm delivery order.
	msgs := GetAndCountMessages(t, store, mailbox, 5)
	for i, want := range subjects {
		assert.Equal(t, want, msgs[i].Subject())
	}
}

// testLabels verifies labels are normalized, added and removed.
func testLabels(t *testing.T, store storage.Store) {
	mailbox := "fred"
	id, _ := DeliverToStore(t, store, mailbox, "labels", time.Now(), "inbox", " Unread ", "INBOX")
	m, err := store.GetMessage(mailbox, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX", "UNREAD"}, m.Labels())

	require.NoError(t, store.ModifyLabels(mailbox, id, []string{"work", "Inbox"}, []string{"unread"}))
	m, err = store.GetMessage(mailbox, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"INBOX", "WORK"}, m.Labels())

	// Snapshots are not affected by later changes.
	require.NoError(t, store.ModifyLabels(mailbox, id, nil, []string{"work"}))
	assert.ElementsMatch(t, []string{"INBOX", "WORK"}, m.Labels())

	err = store.ModifyLabels(mailbox, "missing", []string{"x"}, nil)
	assert.ErrorIs(t, err, storage.ErrNotExist)
}

// testMarkSent verifies a scheduled message becomes sent.
func testMarkSent(t *testing.T, store storage.Store) {
	mailbox := "fred"
	composed := time.Now().Add(-time.Hour)
	id, _ := DeliverToStore(t, store, mailbox, "later", composed, storage.LabelScheduled, "work")
	sentAt := time.Now().Truncate(time.Second)

	require.NoError(t, store.MarkSent(mailbox, id, sentAt))
	m, err := store.GetMessage(mailbox, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{storage.LabelSent, "WORK"}, m.Labels())
	assert.True(t, m.Date().Equal(sentAt))
	assert.True(t, m.ScheduledAt().IsZero())

	assert.ErrorIs(t, store.MarkSent(mailbox, "missing", sentAt), storage.ErrNotExist)
}

// testSize verifies message content size metadata values.
func testSize(t *testing.T, store storage.Store) {
	mailbox := "fred"
	subjects := []string{"a", "br", "much longer than the others"}
	sentIds := make([]string, len(subjects))
	sentSizes := make([]int64, len(subjects))
	for i, subj := range subjects {
		id, size := DeliverToStore(t, store, mailbox, subj, time.Now())
		sentIds[i] = id
		sentSizes[i] = size
	}
	for i, id := range sentIds {
		msg, err := store.GetMessage(mailbox, id)
		require.NoError(t, err)
		assert.Equal(t, sentSizes[i], msg.Size())
	}
}

// testDelete creates and deletes some messages.
func testDelete(t *testing.T, store storage.Store) {
	mailbox := "fred"
	subjects := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for _, subj := range subjects {
		DeliverToStore(t, store, mailbox, subj, time.Now())
	}
	msgs := GetAndCountMessages(t, store, mailbox, len(subjects))

	// Delete a couple messages.
	require.NoError(t, store.RemoveMessage(mailbox, msgs[1].ID()))
	require.NoError(t, store.RemoveMessage(mailbox, msgs[3].ID()))
	assert.ErrorIs(t, store.RemoveMessage(mailbox, msgs[3].ID()), storage.ErrNotExist)

	// Confirm deletion.
	_, err := store.GetMessage(mailbox, msgs[1].ID())
	assert.ErrorIs(t, err, storage.ErrNotExist)
	subjects = []string{"alpha", "charlie", "echo"}
	msgs = GetAndCountMessages(t, store, mailbox, len(subjects))
	for i, want := range subjects {
		assert.Equal(t, want, msgs[i].Subject())
	}

	// Try appending one more.
	DeliverToStore(t, store, mailbox, "foxtrot", time.Now())
	subjects = []string{"alpha", "charlie", "echo", "foxtrot"}
	msgs = GetAndCountMessages(t, store, mailbox, len(subjects))
	for i, want := range subjects {
		assert.Equal(t, want, msgs[i].Subject())
	}
}

// testPurge makes sure mailboxes can be purged.
func testPurge(t *testing.T, store storage.Store) {
	mailbox := "fred"
	subjects := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for _, subj := range subjects {
		DeliverToStore(t, store, mailbox, subj, time.Now())
	}
	GetAndCountMessages(t, store, mailbox, len(subjects))

	// Purge and verify.
	require.NoError(t, store.PurgeMessages(mailbox))
	GetAndCountMessages(t, store, mailbox, 0)
}

// testMsgCap verifies the message cap is enforced.
func testMsgCap(t *testing.T, store storage.Store) {
	mbCap := 10
	mailbox := "captain"
	for i := range 20 {
		subj := "subject " + string(rune('a'+i))
		DeliverToStore(t, store, mailbox, subj, time.Now())
		msgs, err := store.GetMessages(mailbox)
		require.NoError(t, err)
		if len(msgs) > mbCap {
			t.Errorf("Mailbox should be capped at %v messages, but has %v", mbCap, len(msgs))
		}
	}

	// Confirm the oldest messages were removed.
	msgs := GetAndCountMessages(t, store, mailbox, mbCap)
	assert.Equal(t, "subject k", msgs[0].Subject())
	assert.Equal(t, "subject t", msgs[mbCap-1].Subject())
}

// testNoMsgCap verfies a cap of 0 is not enforced.
func testNoMsgCap(t *testing.T, store storage.Store) {
	mailbox := "captain"
	for range 20 {
		DeliverToStore(t, store, mailbox, "subject", time.Now())
	}
	GetAndCountMessages(t, store, mailbox, 20)
}

// testVisitMailboxes creates some mailboxes and confirms the VisitMailboxes method visits all of
// them.
func testVisitMailboxes(t *testing.T, ds storage.Store) {
	boxes := []string{"abby", "bill", "christa", "donald", "evelyn"}
	for _, name := range boxes {
		DeliverToStore(t, ds, name, "Old Message", time.Now().Add(-24*time.Hour))
		DeliverToStore(t, ds, name, "New Message", time.Now())
	}
	seen := 0
	err := ds.VisitMailboxes(func(messages []storage.Message) bool {
		seen++
		assert.Len(t, messages, 2)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 5, seen)

	// Stop early.
	seen = 0
	err = ds.VisitMailboxes(func(messages []storage.Message) bool {
		seen++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}
