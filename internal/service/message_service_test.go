package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dogworld/dogworld-backend/internal/common"
	"github.com/dogworld/dogworld-backend/internal/domain"
	"github.com/dogworld/dogworld-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Message{},
		&domain.Notification{},
		&domain.Blog{},
		&domain.Post{},
		&domain.Comment{},
		&domain.Product{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string, staff bool) *domain.User {
	t.Helper()
	u := &domain.User{
		Username: username,
		Email:    username + "@example.com",
		IsStaff:  staff,
		IsActive: true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}

func newMessageService(db *gorm.DB) MessageService {
	return NewMessageService(
		repository.NewMessageRepository(db),
		repository.NewMemberRepository(db),
		nil,
		nil,
	)
}

func sendTestMessage(t *testing.T, svc MessageService, from, to uint, content string) *domain.MessageResponse {
	t.Helper()
	resp, err := svc.SendMessage(from, &domain.SendMessageRequest{ReceiverID: to, Content: content}, nil)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	return resp
}

func TestSendMessage_ToSelfRejected(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	svc := newMessageService(db)

	_, err := svc.SendMessage(a.ID, &domain.SendMessageRequest{ReceiverID: a.ID, Content: "hi me"}, nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self message, got %v", err)
	}
}

func TestSendMessage_ContentTooLong(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	svc := newMessageService(db)

	_, err := svc.SendMessage(a.ID, &domain.SendMessageRequest{
		ReceiverID: b.ID,
		Content:    strings.Repeat("x", domain.MaxMessageLength+1),
	}, nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for oversized content, got %v", err)
	}
}

func TestSendMessage_ReceiverMissing(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	svc := newMessageService(db)

	_, err := svc.SendMessage(a.ID, &domain.SendMessageRequest{ReceiverID: 999, Content: "hello"}, nil)
	if !errors.Is(err, common.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// fakeStorage records uploads and deletes without talking to S3
type fakeStorage struct {
	uploads int
	deleted []string
}

func (f *fakeStorage) Upload(_ context.Context, key, _ string, _ io.Reader, _ int64) (string, error) {
	f.uploads++
	return "https://cdn.test/" + key, nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) GetPresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.test/" + key, nil
}

func (f *fakeStorage) KeyFromURL(url string) string {
	key, ok := strings.CutPrefix(url, "https://cdn.test/")
	if !ok {
		return ""
	}
	return key
}

func TestSendMessage_AttachmentValidation(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	storage := &fakeStorage{}
	svc := NewMessageService(
		repository.NewMessageRepository(db),
		repository.NewMemberRepository(db),
		nil,
		storage,
	)
	req := &domain.SendMessageRequest{ReceiverID: b.ID, Content: "see attached"}

	// disallowed extension
	_, err := svc.SendMessage(a.ID, req, &AttachmentUpload{Filename: "evil.exe", Size: 1024, Body: strings.NewReader("x")})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected .exe to be rejected, got %v", err)
	}

	// over the size cap
	_, err = svc.SendMessage(a.ID, req, &AttachmentUpload{Filename: "big.png", Size: 11 * 1024 * 1024, Body: strings.NewReader("x")})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected 11MB upload to be rejected, got %v", err)
	}
	if storage.uploads != 0 {
		t.Fatalf("rejected attachments must not reach storage, got %d uploads", storage.uploads)
	}

	// valid upload
	resp, err := svc.SendMessage(a.ID, req, &AttachmentUpload{Filename: "dog.png", Size: 5 * 1024 * 1024, Body: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("expected 5MB png to be accepted, got %v", err)
	}
	if resp.AttachmentURL == "" || storage.uploads != 1 {
		t.Fatalf("expected stored attachment URL, got %q (%d uploads)", resp.AttachmentURL, storage.uploads)
	}
}

func TestMarkAsRead_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	svc := newMessageService(db)
	repo := repository.NewMessageRepository(db)

	sent := sendTestMessage(t, svc, a.ID, b.ID, "hello")

	if err := svc.MarkAsRead(sent.ID, b.ID); err != nil {
		t.Fatalf("MarkAsRead failed: %v", err)
	}
	first, err := repo.FindByID(sent.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !first.IsRead || first.ReadAt == nil {
		t.Fatal("expected message to be read with read_at set")
	}

	time.Sleep(10 * time.Millisecond)
	if err := svc.MarkAsRead(sent.ID, b.ID); err != nil {
		t.Fatalf("second MarkAsRead failed: %v", err)
	}
	second, _ := repo.FindByID(sent.ID)
	if !second.ReadAt.Equal(*first.ReadAt) {
		t.Fatalf("read_at changed on repeat mark: %v != %v", second.ReadAt, first.ReadAt)
	}
}

func TestMarkAsRead_OnlyReceiver(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	svc := newMessageService(db)

	sent := sendTestMessage(t, svc, a.ID, b.ID, "hello")

	err := svc.MarkAsRead(sent.ID, a.ID)
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for sender marking read, got %v", err)
	}
}

func TestSoftDelete_OneSideKeepsOtherVisible(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	svc := newMessageService(db)
	repo := repository.NewMessageRepository(db)

	sent := sendTestMessage(t, svc, a.ID, b.ID, "hello")

	if err := svc.DeleteMessage(sent.ID, a.ID); err != nil {
		t.Fatalf("sender delete failed: %v", err)
	}

	// sender no longer sees it
	if _, err := svc.GetMessage(sent.ID, a.ID); !errors.Is(err, common.ErrMessageNotFound) {
		t.Fatalf("expected message hidden from sender, got %v", err)
	}

	// receiver still does
	got, err := svc.GetMessage(sent.ID, b.ID)
	if err != nil {
		t.Fatalf("receiver should still see the message: %v", err)
	}
	if got.Content != "hello" {
		t.Fatalf("unexpected content %q", got.Content)
	}

	// second side deletes: the row is gone for good
	if err := svc.DeleteMessage(sent.ID, b.ID); err != nil {
		t.Fatalf("receiver delete failed: %v", err)
	}
	if _, err := repo.FindByID(sent.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected permanent removal after both sides deleted, got %v", err)
	}
}

func TestDeleteMessage_ThirdPartyForbidden(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	e := createUser(t, db, "eve", false)
	svc := newMessageService(db)

	sent := sendTestMessage(t, svc, a.ID, b.ID, "secret")

	if err := svc.DeleteMessage(sent.ID, e.ID); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for third-party delete, got %v", err)
	}
}

func TestConversations_AggregatesAndScenario(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	svc := newMessageService(db)

	m1 := sendTestMessage(t, svc, a.ID, b.ID, "first")
	sendTestMessage(t, svc, a.ID, b.ID, "second")
	m3 := sendTestMessage(t, svc, a.ID, b.ID, "third")

	convs, err := svc.Conversations(b.ID)
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convs))
	}
	conv := convs[0]
	assert.Equal(t, a.ID, conv.Participant.ID)
	assert.Equal(t, int64(3), conv.UnreadCount)
	assert.Equal(t, m3.ID, conv.LatestMessage.ID)
	assert.Equal(t, conv.LatestMessage.SentAt, conv.LastActivity)

	// reading one message drops the unread count to 2
	if err := svc.MarkAsRead(m1.ID, b.ID); err != nil {
		t.Fatalf("MarkAsRead failed: %v", err)
	}
	convs, err = svc.Conversations(b.ID)
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	assert.Equal(t, int64(2), convs[0].UnreadCount)

	// A deletes the conversation: nothing is jointly deleted yet,
	// and B keeps seeing all three messages
	removed, err := svc.DeleteConversation(a.ID, b.ID)
	if err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	assert.Equal(t, int64(0), removed)

	convs, err = svc.Conversations(b.ID)
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected B to keep the conversation, got %d", len(convs))
	}
	assert.Equal(t, int64(2), convs[0].UnreadCount)

	// A no longer has any conversation with B
	convsA, err := svc.Conversations(a.ID)
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	assert.Empty(t, convsA)

	// once B deletes too, the pair is permanently removed
	removed, err = svc.DeleteConversation(b.ID, a.ID)
	if err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	assert.Equal(t, int64(3), removed)

	var count int64
	db.Model(&domain.Message{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestMarkConversationRead_ReportsCount(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	svc := newMessageService(db)

	for i := 0; i < 4; i++ {
		sendTestMessage(t, svc, b.ID, a.ID, fmt.Sprintf("msg %d", i))
	}

	updated, err := svc.MarkConversationRead(a.ID, b.ID)
	if err != nil {
		t.Fatalf("MarkConversationRead failed: %v", err)
	}
	assert.Equal(t, int64(4), updated)

	convs, err := svc.Conversations(a.ID)
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convs))
	}
	assert.Equal(t, int64(0), convs[0].UnreadCount)

	// second pass finds nothing left to update
	updated, err = svc.MarkConversationRead(a.ID, b.ID)
	if err != nil {
		t.Fatalf("second MarkConversationRead failed: %v", err)
	}
	assert.Equal(t, int64(0), updated)
}

func TestDeleteConversation_ScopedToPair(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	c := createUser(t, db, "carol", false)
	svc := newMessageService(db)

	sendTestMessage(t, svc, a.ID, b.ID, "for bob")
	keep := sendTestMessage(t, svc, a.ID, c.ID, "for carol")

	// both sides of A<->B delete; A<->C must survive untouched
	if _, err := svc.DeleteConversation(a.ID, b.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	removed, err := svc.DeleteConversation(b.ID, a.ID)
	if err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	assert.Equal(t, int64(1), removed)

	got, err := svc.GetMessage(keep.ID, c.ID)
	if err != nil {
		t.Fatalf("A<->C message swept by unrelated delete: %v", err)
	}
	assert.Equal(t, "for carol", got.Content)
}

func TestListVisible_StaffBypass(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	staff := createUser(t, db, "admin", true)
	svc := newMessageService(db)

	sent := sendTestMessage(t, svc, a.ID, b.ID, "hello")
	if err := svc.DeleteMessage(sent.ID, a.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// the sender's own listing is empty now
	own, _, err := svc.ListVisible(a.ID, false, 1, 20)
	if err != nil {
		t.Fatalf("ListVisible failed: %v", err)
	}
	assert.Empty(t, own)

	// staff see the half-deleted message despite not being a participant
	all, _, err := svc.ListVisible(staff.ID, true, 1, 20)
	if err != nil {
		t.Fatalf("staff ListVisible failed: %v", err)
	}
	assert.Len(t, all, 1)
}

func TestConversationWith_CursorPagination(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	svc := newMessageService(db)

	for i := 1; i <= 5; i++ {
		sendTestMessage(t, svc, a.ID, b.ID, fmt.Sprintf("msg %d", i))
	}

	page1, hasMore, err := svc.ConversationWith(b.ID, a.ID, 0, 2)
	if err != nil {
		t.Fatalf("ConversationWith failed: %v", err)
	}
	assert.True(t, hasMore)
	assert.Len(t, page1, 2)
	assert.Equal(t, "msg 4", page1[0].Content)
	assert.Equal(t, "msg 5", page1[1].Content)

	page2, hasMore, err := svc.ConversationWith(b.ID, a.ID, page1[0].ID, 2)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	assert.True(t, hasMore)
	assert.Equal(t, "msg 2", page2[0].Content)
	assert.Equal(t, "msg 3", page2[1].Content)

	page3, hasMore, err := svc.ConversationWith(b.ID, a.ID, page2[0].ID, 2)
	if err != nil {
		t.Fatalf("last page failed: %v", err)
	}
	assert.False(t, hasMore)
	assert.Len(t, page3, 1)
	assert.Equal(t, "msg 1", page3[0].Content)
}

func TestConversations_MostRecentFirst(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	c := createUser(t, db, "carol", false)
	svc := newMessageService(db)

	sendTestMessage(t, svc, a.ID, b.ID, "older thread")
	sendTestMessage(t, svc, c.ID, a.ID, "newer thread")

	convs, err := svc.Conversations(a.ID)
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	assert.Equal(t, c.ID, convs[0].Participant.ID)
	assert.Equal(t, b.ID, convs[1].Participant.ID)
	for _, conv := range convs {
		assert.Equal(t, conv.LatestMessage.SentAt, conv.LastActivity)
	}
}

func TestConversationWith_MarksFetchedRead(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	svc := newMessageService(db)

	for i := 0; i < 3; i++ {
		sendTestMessage(t, svc, a.ID, b.ID, fmt.Sprintf("msg %d", i))
	}

	// the sender viewing the thread does not touch the receiver's state
	if _, _, err := svc.ConversationWith(a.ID, b.ID, 0, 10); err != nil {
		t.Fatalf("ConversationWith failed: %v", err)
	}
	count, err := svc.UnreadCount(b.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	assert.Equal(t, int64(3), count)

	// the receiver viewing it marks everything from that counterpart read
	page, _, err := svc.ConversationWith(b.ID, a.ID, 0, 10)
	if err != nil {
		t.Fatalf("ConversationWith failed: %v", err)
	}
	for _, m := range page {
		assert.True(t, m.IsRead)
	}
	count, err = svc.UnreadCount(b.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	assert.Equal(t, int64(0), count)
}

func TestSendMessage_ContentLimitCountsRunes(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	svc := newMessageService(db)

	// 3 bytes per rune: valid at the limit even though the byte count is 3x
	atLimit := strings.Repeat("개", domain.MaxMessageLength)
	if _, err := svc.SendMessage(a.ID, &domain.SendMessageRequest{ReceiverID: b.ID, Content: atLimit}, nil); err != nil {
		t.Fatalf("content at the rune limit must be accepted, got %v", err)
	}

	_, err := svc.SendMessage(a.ID, &domain.SendMessageRequest{ReceiverID: b.ID, Content: atLimit + "개"}, nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput one rune over the limit, got %v", err)
	}
}

func TestDeleteMessage_RemovesStoredAttachment(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	storage := &fakeStorage{}
	svc := NewMessageService(
		repository.NewMessageRepository(db),
		repository.NewMemberRepository(db),
		nil,
		storage,
	)

	sent, err := svc.SendMessage(a.ID,
		&domain.SendMessageRequest{ReceiverID: b.ID, Content: "see attached"},
		&AttachmentUpload{Filename: "dog.png", Size: 1024, Body: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	// one side deleting keeps the object
	if err := svc.DeleteMessage(sent.ID, a.ID); err != nil {
		t.Fatalf("sender delete failed: %v", err)
	}
	assert.Empty(t, storage.deleted)

	// both sides deleted: the row and the stored object go together
	if err := svc.DeleteMessage(sent.ID, b.ID); err != nil {
		t.Fatalf("receiver delete failed: %v", err)
	}
	if len(storage.deleted) != 1 {
		t.Fatalf("expected one stored object deleted, got %d", len(storage.deleted))
	}
	assert.Equal(t, "https://cdn.test/"+storage.deleted[0], sent.AttachmentURL)
}

func TestAttachmentDownloadURL(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)
	e := createUser(t, db, "eve", false)
	storage := &fakeStorage{}
	svc := NewMessageService(
		repository.NewMessageRepository(db),
		repository.NewMemberRepository(db),
		nil,
		storage,
	)

	sent, err := svc.SendMessage(a.ID,
		&domain.SendMessageRequest{ReceiverID: b.ID, Content: "see attached"},
		&AttachmentUpload{Filename: "dog.png", Size: 1024, Body: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	url, err := svc.AttachmentDownloadURL(sent.ID, b.ID)
	if err != nil {
		t.Fatalf("AttachmentDownloadURL failed: %v", err)
	}
	if !strings.HasPrefix(url, "https://signed.test/") {
		t.Fatalf("expected a pre-signed URL, got %q", url)
	}

	if _, err := svc.AttachmentDownloadURL(sent.ID, e.ID); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a third party, got %v", err)
	}

	plain := sendTestMessage(t, svc, a.ID, b.ID, "no attachment here")
	if _, err := svc.AttachmentDownloadURL(plain.ID, b.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without an attachment, got %v", err)
	}
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyNewMessage(message *domain.Message) error {
	args := m.Called(message)
	return args.Error(0)
}

func TestSendMessage_SurvivesNotifierFailure(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice", false)
	b := createUser(t, db, "bob", false)

	notifier := new(MockNotifier)
	notifier.On("NotifyNewMessage", mock.Anything).Return(errors.New("notification store down"))

	svc := NewMessageService(
		repository.NewMessageRepository(db),
		repository.NewMemberRepository(db),
		notifier,
		nil,
	)

	resp, err := svc.SendMessage(a.ID, &domain.SendMessageRequest{ReceiverID: b.ID, Content: "hello"}, nil)
	if err != nil {
		t.Fatalf("send must succeed despite notifier failure, got %v", err)
	}
	assert.NotZero(t, resp.ID)
	notifier.AssertCalled(t, "NotifyNewMessage", mock.Anything)

	var count int64
	db.Model(&domain.Message{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
