package ident_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/inbucket/courier/pkg/ident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratorRejectsBadNode(t *testing.T) {
	_, err := ident.NewGenerator(4096)
	assert.Error(t, err)
}

func TestMessageIDIncreases(t *testing.T) {
	g, err := ident.NewGenerator(1)
	require.NoError(t, err)

	prev := int64(0)
	for range 100 {
		id := g.MessageID()
		n, err := strconv.ParseInt(id, 10, 64)
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		prev = n
	}
}

func TestPaymentIDPrefix(t *testing.T) {
	g, err := ident.NewGenerator(1)
	require.NoError(t, err)

	a, b := g.PaymentID(), g.PaymentID()
	assert.True(t, strings.HasPrefix(a, "pay_"))
	assert.NotEqual(t, a, b)
}

func TestDraftIDIsUUID(t *testing.T) {
	g, err := ident.NewGenerator(1)
	require.NoError(t, err)

	id := g.DraftID()
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, g.DraftID())
}
