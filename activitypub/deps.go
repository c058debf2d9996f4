package activitypub

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/domain"
)

// Database defines the database operations required by the ActivityPub package.
// This interface allows for dependency injection and testing with mock implementations.
type Database interface {
	// User operations
	ReadUserById(id uuid.UUID) (error, *domain.User)
	ReadUserByUri(uri string) (error, *domain.User)
	ReadUserByProfileUrl(url string) (error, *domain.User)
	ReadUserByAcct(username, host string) (error, *domain.User)
	CreateUser(user *domain.User) error
	UpdateUser(user *domain.User) error
	DeleteUser(id uuid.UUID) error
	TouchUserFetchedAt(id uuid.UUID, at time.Time) error
	IncrementFollowersCount(id uuid.UUID, delta int) error
	IncrementFollowingCount(id uuid.UUID, delta int) error

	// Keypair operations
	ReadKeypairByUserId(userId uuid.UUID) (error, *domain.Keypair)
	CreateKeypair(kp *domain.Keypair) error

	// Following operations
	CreateFollowing(f *domain.Following) (bool, error)
	ReadFollowing(followerId, followeeId uuid.UUID) (error, *domain.Following)
	ReadFollowersByUserId(followeeId uuid.UUID) (error, *[]domain.Following)
	DeleteFollowing(followerId, followeeId uuid.UUID) (int64, error)
	DeleteFollowingsByUserId(userId uuid.UUID) error

	// Follow request operations
	CreateFollowRequest(fr *domain.FollowRequest) (bool, error)
	ReadFollowRequest(followerId, followeeId uuid.UUID) (error, *domain.FollowRequest)
	DeleteFollowRequest(followerId, followeeId uuid.UUID) (int64, error)

	// Blocking operations
	IsBlocking(blockerId, blockeeId uuid.UUID) (bool, error)

	// Note operations
	ReadNoteById(id uuid.UUID) (error, *domain.Note)
	ReadNoteByURI(uri string) (error, *domain.Note)
	CreateNote(note *domain.Note) error
	UpdateNoteContent(uri, content string, ownerId uuid.UUID) error
	DeleteNoteByURI(uri string, ownerId uuid.UUID) (int64, error)
	DeleteRenote(userId, renoteId uuid.UUID) (int64, error)
	IncrementLikeCount(noteId uuid.UUID, delta int) error
	IncrementRenoteCount(noteId uuid.UUID, delta int) error
	IncrementReplyCountByURI(parentURI string) error

	// Like operations
	CreateLike(like *domain.Like) (bool, error)
	DeleteLike(userId, noteId uuid.UUID) (int64, error)

	// Bite operations
	CreateBite(bite *domain.Bite) error
	ReadBiteById(id uuid.UUID) (error, *domain.Bite)
	ReadBiteByURI(uri string) (error, *domain.Bite)

	// Notification operations
	CreateNotification(n *domain.Notification) error
	DeleteNotification(accountId, actorId uuid.UUID, ntype domain.NotificationType) error

	// Instance operations
	UpsertInstance(host string, seenAt time.Time) error

	// Activity log operations
	CreateActivity(activity *domain.Activity) error
	UpdateActivity(activity *domain.Activity) error
	ReadActivityByURI(uri string) (error, *domain.Activity)

	// Delivery queue operations
	EnqueueDeliveryJob(job *domain.DeliveryJob) error
	ReadPendingDeliveryJobs(limit int) (error, *[]domain.DeliveryJob)
}

// HTTPClient defines the HTTP client operations required by the ActivityPub package.
// This interface allows for dependency injection and testing with mock implementations.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxRedirects bounds how many redirects a single fetch may follow.
const maxRedirects = 3

// DefaultHTTPClient is the default HTTP client used in production. Redirects
// are capped so a malicious server cannot bounce a fetch around indefinitely.
type DefaultHTTPClient struct {
	client *http.Client
}

// NewDefaultHTTPClient creates a new default HTTP client with the specified timeout
func NewDefaultHTTPClient(timeout time.Duration) *DefaultHTTPClient {
	return &DefaultHTTPClient{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Do executes the HTTP request
func (c *DefaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}
