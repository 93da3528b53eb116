package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildWelcomeMessage(t *testing.T) {
	got := buildWelcomeMessage("Hey %user% (%username%), enjoy %server%!", "<@u1>", "ana", "Guild")
	assert.Equal(t, "Hey <@u1> (ana), enjoy Guild!", got)

	got = buildWelcomeMessage("", "<@u1>", "ana", "Guild")
	assert.Contains(t, got, "<@u1>", "default template greets the member")
	assert.Contains(t, got, "Guild")
}
