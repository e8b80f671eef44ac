// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/commentflow/internal/types"

// Compile-time interface compliance checks.
var _ types.CommentStore = (*CommentStore)(nil)
var _ types.MediaStore = (*MediaStore)(nil)
var _ types.Ledger = (*Ledger)(nil)
var _ types.ClassificationStore = (*ClassificationStore)(nil)
var _ types.SessionStore = (*SessionStore)(nil)
var _ types.TaskQueue = (*TaskStore)(nil)
var _ types.ConversationLock = (*LockManager)(nil)
var _ types.OutcomeRecorder = (*OutcomeStore)(nil)
