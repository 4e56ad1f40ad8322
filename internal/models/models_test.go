package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/internal/enum"
)

func TestMessageFlags(t *testing.T) {
	message := &Message{ID: "m1"}

	assert.False(t, message.HasFlag(enum.FlagSeen))

	message.SetFlag(enum.FlagSeen, true)
	assert.True(t, message.HasFlag(enum.FlagSeen))

	// Setting an already-set flag does not duplicate it.
	message.SetFlag(enum.FlagSeen, true)
	assert.Len(t, message.Flags, 1)

	message.SetFlag(enum.FlagFlagged, true)
	message.SetFlag(enum.FlagSeen, false)
	assert.False(t, message.HasFlag(enum.FlagSeen))
	assert.True(t, message.HasFlag(enum.FlagFlagged))

	// Clearing a flag that is not set is a no-op.
	message.SetFlag(enum.FlagDeleted, false)
	assert.Len(t, message.Flags, 1)
}

func TestLocalUIDs(t *testing.T) {
	uid := NewLocalUID()
	assert.True(t, IsLocalUID(uid))
	assert.False(t, IsLocalUID("4711"))

	message := &Message{UID: uid}
	assert.True(t, message.HasLocalUID())

	message.UID = "4711"
	assert.False(t, message.HasLocalUID())

	assert.NotEqual(t, NewLocalUID(), NewLocalUID())
}

func TestMakeReference(t *testing.T) {
	message := &Message{ID: "m1", AccountID: "acc1", FolderID: "fld1"}
	ref := message.MakeReference()
	assert.Equal(t, MessageReference{AccountID: "acc1", FolderID: "fld1", MessageID: "m1"}, ref)
}

func TestAccountSpecialFolders(t *testing.T) {
	trash := "trash"
	inbox := "inbox"
	account := &Account{TrashFolderID: &trash, InboxFolderID: &inbox}

	assert.True(t, account.HasTrashFolder())
	assert.False(t, account.HasSpamFolder())
	assert.True(t, account.IsSpecialFolder("trash"))
	assert.True(t, account.IsSpecialFolder("inbox"))
	assert.False(t, account.IsSpecialFolder("fld1"))

	assert.False(t, (&Account{}).IsSpecialFolder("trash"))
}

func TestFolderServerIDOrEmpty(t *testing.T) {
	serverID := "INBOX"
	assert.Equal(t, "INBOX", (&Folder{ServerID: &serverID}).ServerIDOrEmpty())
	assert.Equal(t, "", (&Folder{}).ServerIDOrEmpty())
}

func TestPendingCommandPayloadForms(t *testing.T) {
	t.Run("in-memory forms", func(t *testing.T) {
		command := &PendingCommand{Payload: JSONMap{
			PayloadUIDs:   []string{"1", "2"},
			PayloadUIDMap: map[string]string{"1": "local:a"},
			PayloadFlag:   "seen",
			PayloadValue:  true,
		}}
		assert.Equal(t, []string{"1", "2"}, command.UIDs())
		assert.Equal(t, map[string]string{"1": "local:a"}, command.UIDMap())
		assert.Equal(t, "seen", command.StringField(PayloadFlag))
		assert.True(t, command.BoolField(PayloadValue))
	})

	t.Run("jsonb-decoded forms", func(t *testing.T) {
		command := &PendingCommand{Payload: JSONMap{
			PayloadUIDs:   []interface{}{"1", "2", 3},
			PayloadUIDMap: map[string]interface{}{"1": "local:a", "2": 5},
		}}
		assert.Equal(t, []string{"1", "2"}, command.UIDs(), "non-string entries are dropped")
		assert.Equal(t, map[string]string{"1": "local:a"}, command.UIDMap())
	})

	t.Run("missing payload", func(t *testing.T) {
		command := &PendingCommand{}
		assert.Nil(t, command.UIDs())
		assert.Nil(t, command.UIDMap())
		assert.Equal(t, "", command.StringField(PayloadFlag))
		assert.False(t, command.BoolField(PayloadValue))
	})
}

func TestDecodeDeletePolicy(t *testing.T) {
	assert.Equal(t, enum.DeletePolicyOnDelete, enum.DecodeDeletePolicy("on_delete"))
	assert.Equal(t, enum.DeletePolicyMarkAsRead, enum.DecodeDeletePolicy("mark_as_read"))
	assert.Equal(t, enum.DeletePolicyNever, enum.DecodeDeletePolicy("anything else"))
}

func TestOutboxStateDefaults(t *testing.T) {
	state := &OutboxState{MessageID: "m1", SendState: enum.SendStateReady}
	require.Equal(t, enum.SendStateReady, state.SendState)
	assert.Zero(t, state.Attempts)
}
