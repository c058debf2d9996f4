package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/domain"
	"github.com/loxodon-net/loxodon/util"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

const (
	// Users
	userColumns = `id, username, host, uri, profile_url, display_name, summary, inbox_uri,
		shared_inbox_uri, outbox_uri, public_key_pem, avatar_url, is_locked,
		followers_count, following_count, last_fetched_at, created_at`

	sqlInsertUser = `INSERT INTO users(id, username, host, uri, profile_url, display_name, summary,
		inbox_uri, shared_inbox_uri, outbox_uri, public_key_pem, avatar_url, is_locked,
		followers_count, following_count, last_fetched_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateUser = `UPDATE users SET username = ?, host = ?, uri = ?, profile_url = ?,
		display_name = ?, summary = ?, inbox_uri = ?, shared_inbox_uri = ?, outbox_uri = ?,
		public_key_pem = ?, avatar_url = ?, is_locked = ?, last_fetched_at = ? WHERE id = ?`
	sqlSelectUserById         = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	sqlSelectUserByUri        = `SELECT ` + userColumns + ` FROM users WHERE uri = ?`
	sqlSelectUserByProfileUrl = `SELECT ` + userColumns + ` FROM users WHERE profile_url = ? AND profile_url != ''`
	sqlSelectUserByAcct       = `SELECT ` + userColumns + ` FROM users WHERE username = ? AND host = ?`
	sqlDeleteUser             = `DELETE FROM users WHERE id = ?`
	sqlTouchUserFetchedAt     = `UPDATE users SET last_fetched_at = ? WHERE id = ?`
	sqlBumpFollowersCount     = `UPDATE users SET followers_count = MAX(0, followers_count + ?) WHERE id = ?`
	sqlBumpFollowingCount     = `UPDATE users SET following_count = MAX(0, following_count + ?) WHERE id = ?`

	// Keypairs
	sqlInsertKeypair         = `INSERT INTO user_keypairs(user_id, public_pem, private_pem, created_at) VALUES (?, ?, ?, ?)`
	sqlSelectKeypairByUserId = `SELECT user_id, public_pem, private_pem, created_at FROM user_keypairs WHERE user_id = ?`

	// Followings
	followingColumns = `id, follower_id, followee_id, follower_host, follower_inbox_uri,
		follower_shared_inbox, followee_host, followee_inbox_uri, followee_shared_inbox, created_at`

	sqlInsertFollowing = `INSERT OR IGNORE INTO followings(id, follower_id, followee_id,
		follower_host, follower_inbox_uri, follower_shared_inbox,
		followee_host, followee_inbox_uri, followee_shared_inbox, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectFollowing           = `SELECT ` + followingColumns + ` FROM followings WHERE follower_id = ? AND followee_id = ?`
	sqlSelectFollowersByFollowee = `SELECT ` + followingColumns + ` FROM followings WHERE followee_id = ? ORDER BY created_at ASC`
	sqlDeleteFollowing           = `DELETE FROM followings WHERE follower_id = ? AND followee_id = ?`
	sqlDeleteFollowingsByUserId  = `DELETE FROM followings WHERE follower_id = ? OR followee_id = ?`

	// Follow requests
	sqlInsertFollowRequest = `INSERT OR IGNORE INTO follow_requests(id, follower_id, followee_id, request_uri, created_at)
		VALUES (?, ?, ?, ?, ?)`
	sqlSelectFollowRequest = `SELECT id, follower_id, followee_id, request_uri, created_at
		FROM follow_requests WHERE follower_id = ? AND followee_id = ?`
	sqlDeleteFollowRequest = `DELETE FROM follow_requests WHERE follower_id = ? AND followee_id = ?`

	// Blockings
	sqlInsertBlocking = `INSERT OR IGNORE INTO blockings(id, blocker_id, blockee_id, created_at) VALUES (?, ?, ?, ?)`
	sqlSelectBlocking = `SELECT COUNT(*) FROM blockings WHERE blocker_id = ? AND blockee_id = ?`

	// Notes
	noteColumns = `id, user_id, uri, content, visibility, renote_id, in_reply_to_uri,
		like_count, renote_count, reply_count, created_at`

	sqlInsertNote = `INSERT INTO notes(id, user_id, uri, content, visibility, renote_id,
		in_reply_to_uri, like_count, renote_count, reply_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectNoteById         = `SELECT ` + noteColumns + ` FROM notes WHERE id = ?`
	sqlSelectNoteByURI        = `SELECT ` + noteColumns + ` FROM notes WHERE uri = ? AND uri != ''`
	sqlUpdateNoteContent      = `UPDATE notes SET content = ? WHERE uri = ? AND user_id = ?`
	sqlDeleteNoteByURI        = `DELETE FROM notes WHERE uri = ? AND user_id = ?`
	sqlDeleteRenote           = `DELETE FROM notes WHERE user_id = ? AND renote_id = ?`
	sqlBumpLikeCount          = `UPDATE notes SET like_count = MAX(0, like_count + ?) WHERE id = ?`
	sqlBumpRenoteCount        = `UPDATE notes SET renote_count = MAX(0, renote_count + ?) WHERE id = ?`
	sqlBumpReplyCountByURI    = `UPDATE notes SET reply_count = reply_count + 1 WHERE uri = ? AND uri != ''`

	// Likes
	sqlInsertLike = `INSERT OR IGNORE INTO likes(id, user_id, note_id, uri, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlDeleteLike = `DELETE FROM likes WHERE user_id = ? AND note_id = ?`

	// Bites
	sqlInsertBite      = `INSERT INTO bites(id, uri, user_id, target_user_id, target_note_id, target_bite_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectBiteById  = `SELECT id, uri, user_id, target_user_id, target_note_id, target_bite_id, created_at FROM bites WHERE id = ?`
	sqlSelectBiteByURI = `SELECT id, uri, user_id, target_user_id, target_note_id, target_bite_id, created_at FROM bites WHERE uri = ?`

	// Notifications
	sqlInsertNotification = `INSERT INTO notifications(id, account_id, notification_type, actor_id,
		actor_username, actor_host, note_id, bite_id, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlDeleteNotification = `DELETE FROM notifications WHERE account_id = ? AND actor_id = ? AND notification_type = ?`

	// Instances
	sqlUpsertInstance = `INSERT INTO instances(host, first_seen_at, last_seen_at) VALUES (?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET last_seen_at = excluded.last_seen_at`

	// Activities
	sqlInsertActivity      = `INSERT INTO activities(id, activity_uri, activity_type, actor_uri, object_uri, raw_json, processed, local, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateActivity      = `UPDATE activities SET raw_json = ?, processed = ? WHERE id = ?`
	sqlSelectActivityByURI = `SELECT id, activity_uri, activity_type, actor_uri, COALESCE(object_uri, ''), raw_json, processed, local, created_at FROM activities WHERE activity_uri = ?`

	// Delivery jobs
	sqlInsertDeliveryJob  = `INSERT INTO delivery_jobs(id, actor_id, recipient_ids, activity_json, to_followers, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectDeliveryJobs = `SELECT id, actor_id, recipient_ids, activity_json, to_followers, created_at FROM delivery_jobs ORDER BY created_at ASC LIMIT ?`
)

// GetDB returns the singleton database, opening and migrating it on first use.
func GetDB() *DB {
	dbOnce.Do(func() {
		dbPath := util.ResolveFilePath("database.db")
		log.Printf("Using database at: %s", dbPath)

		sqldb, err := sql.Open("sqlite", dbPath)
		if err != nil {
			panic(err)
		}

		instance, err := initDB(sqldb)
		if err != nil {
			panic(err)
		}
		dbInstance = instance
	})

	return dbInstance
}

// NewDB opens a database at the given path. Used by tests; production code
// goes through GetDB.
func NewDB(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return initDB(sqldb)
}

func initDB(sqldb *sql.DB) (*DB, error) {
	// Connection pool sized for a concurrent federation workload
	sqldb.SetMaxOpenConns(25)
	sqldb.SetMaxIdleConns(5)
	sqldb.SetConnMaxLifetime(time.Hour)

	var journalMode string
	if err := sqldb.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		log.Printf("Warning: Failed to enable WAL mode: %v", err)
	} else {
		log.Printf("Database journal mode: %s", journalMode)
	}

	sqldb.Exec("PRAGMA synchronous = NORMAL")
	sqldb.Exec("PRAGMA cache_size = -64000")
	sqldb.Exec("PRAGMA temp_store = MEMORY")
	sqldb.Exec("PRAGMA busy_timeout = 5000")
	sqldb.Exec("PRAGMA foreign_keys = ON")

	instance := &DB{db: sqldb}
	if err := instance.RunMigrations(); err != nil {
		return nil, err
	}
	return instance, nil
}

// Close closes the underlying connection pool.
func (sdb *DB) Close() error {
	return sdb.db.Close()
}

func (sdb *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			tx.Rollback()
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}

// User operations

func (sdb *DB) CreateUser(user *domain.User) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertUser,
			user.Id.String(), user.Username, user.Host, user.Uri, user.ProfileUrl,
			user.DisplayName, user.Summary, user.InboxURI, user.SharedInboxURI,
			user.OutboxURI, user.PublicKeyPem, user.AvatarURL, user.IsLocked,
			user.FollowersCount, user.FollowingCount, user.LastFetchedAt, user.CreatedAt,
		)
		return err
	})
}

func (sdb *DB) UpdateUser(user *domain.User) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateUser,
			user.Username, user.Host, user.Uri, user.ProfileUrl, user.DisplayName,
			user.Summary, user.InboxURI, user.SharedInboxURI, user.OutboxURI,
			user.PublicKeyPem, user.AvatarURL, user.IsLocked, user.LastFetchedAt,
			user.Id.String(),
		)
		return err
	})
}

func (sdb *DB) DeleteUser(id uuid.UUID) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteUser, id.String())
		return err
	})
}

func (sdb *DB) TouchUserFetchedAt(id uuid.UUID, at time.Time) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlTouchUserFetchedAt, at, id.String())
		return err
	})
}

func (sdb *DB) IncrementFollowersCount(id uuid.UUID, delta int) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlBumpFollowersCount, delta, id.String())
		return err
	})
}

func (sdb *DB) IncrementFollowingCount(id uuid.UUID, delta int) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlBumpFollowingCount, delta, id.String())
		return err
	})
}

func scanUser(row *sql.Row) (error, *domain.User) {
	var user domain.User
	var idStr string
	err := row.Scan(
		&idStr, &user.Username, &user.Host, &user.Uri, &user.ProfileUrl,
		&user.DisplayName, &user.Summary, &user.InboxURI, &user.SharedInboxURI,
		&user.OutboxURI, &user.PublicKeyPem, &user.AvatarURL, &user.IsLocked,
		&user.FollowersCount, &user.FollowingCount, &user.LastFetchedAt, &user.CreatedAt,
	)
	if err != nil {
		return err, nil
	}
	user.Id, _ = uuid.Parse(idStr)
	return nil, &user
}

func (sdb *DB) ReadUserById(id uuid.UUID) (error, *domain.User) {
	return scanUser(sdb.db.QueryRow(sqlSelectUserById, id.String()))
}

func (sdb *DB) ReadUserByUri(uri string) (error, *domain.User) {
	return scanUser(sdb.db.QueryRow(sqlSelectUserByUri, uri))
}

func (sdb *DB) ReadUserByProfileUrl(url string) (error, *domain.User) {
	return scanUser(sdb.db.QueryRow(sqlSelectUserByProfileUrl, url))
}

func (sdb *DB) ReadUserByAcct(username, host string) (error, *domain.User) {
	return scanUser(sdb.db.QueryRow(sqlSelectUserByAcct, username, host))
}

// Keypair operations

func (sdb *DB) CreateKeypair(kp *domain.Keypair) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertKeypair, kp.UserId.String(), kp.PublicPem, kp.PrivatePem, kp.CreatedAt)
		return err
	})
}

func (sdb *DB) ReadKeypairByUserId(userId uuid.UUID) (error, *domain.Keypair) {
	row := sdb.db.QueryRow(sqlSelectKeypairByUserId, userId.String())
	var kp domain.Keypair
	var idStr string
	err := row.Scan(&idStr, &kp.PublicPem, &kp.PrivatePem, &kp.CreatedAt)
	if err != nil {
		return err, nil
	}
	kp.UserId, _ = uuid.Parse(idStr)
	return nil, &kp
}

// Following operations

// CreateFollowing inserts the edge if it does not already exist and reports
// whether a row was actually created. Duplicate delivery of the same Follow
// must not create a second edge, so the insert is OR IGNORE on the ordered
// pair.
func (sdb *DB) CreateFollowing(f *domain.Following) (bool, error) {
	var created bool
	err := sdb.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlInsertFollowing,
			f.Id.String(), f.FollowerId.String(), f.FolloweeId.String(),
			f.FollowerHost, f.FollowerInboxURI, f.FollowerSharedInbox,
			f.FolloweeHost, f.FolloweeInboxURI, f.FolloweeSharedInbox, f.CreatedAt,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n > 0
		return nil
	})
	return created, err
}

func scanFollowing(row *sql.Row) (error, *domain.Following) {
	var f domain.Following
	var idStr, followerStr, followeeStr string
	err := row.Scan(
		&idStr, &followerStr, &followeeStr,
		&f.FollowerHost, &f.FollowerInboxURI, &f.FollowerSharedInbox,
		&f.FolloweeHost, &f.FolloweeInboxURI, &f.FolloweeSharedInbox, &f.CreatedAt,
	)
	if err != nil {
		return err, nil
	}
	f.Id, _ = uuid.Parse(idStr)
	f.FollowerId, _ = uuid.Parse(followerStr)
	f.FolloweeId, _ = uuid.Parse(followeeStr)
	return nil, &f
}

func (sdb *DB) ReadFollowing(followerId, followeeId uuid.UUID) (error, *domain.Following) {
	return scanFollowing(sdb.db.QueryRow(sqlSelectFollowing, followerId.String(), followeeId.String()))
}

func (sdb *DB) ReadFollowersByUserId(followeeId uuid.UUID) (error, *[]domain.Following) {
	rows, err := sdb.db.Query(sqlSelectFollowersByFollowee, followeeId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var followings []domain.Following
	for rows.Next() {
		var f domain.Following
		var idStr, followerStr, followeeStr string
		err := rows.Scan(
			&idStr, &followerStr, &followeeStr,
			&f.FollowerHost, &f.FollowerInboxURI, &f.FollowerSharedInbox,
			&f.FolloweeHost, &f.FolloweeInboxURI, &f.FolloweeSharedInbox, &f.CreatedAt,
		)
		if err != nil {
			return err, nil
		}
		f.Id, _ = uuid.Parse(idStr)
		f.FollowerId, _ = uuid.Parse(followerStr)
		f.FolloweeId, _ = uuid.Parse(followeeStr)
		followings = append(followings, f)
	}
	return rows.Err(), &followings
}

// DeleteFollowing removes the edge and returns the number of rows actually
// removed, so callers can adjust counters by exactly that amount.
func (sdb *DB) DeleteFollowing(followerId, followeeId uuid.UUID) (int64, error) {
	var removed int64
	err := sdb.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlDeleteFollowing, followerId.String(), followeeId.String())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func (sdb *DB) DeleteFollowingsByUserId(userId uuid.UUID) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowingsByUserId, userId.String(), userId.String())
		return err
	})
}

// FollowRequest operations

func (sdb *DB) CreateFollowRequest(fr *domain.FollowRequest) (bool, error) {
	var created bool
	err := sdb.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlInsertFollowRequest,
			fr.Id.String(), fr.FollowerId.String(), fr.FolloweeId.String(), fr.RequestURI, fr.CreatedAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n > 0
		return nil
	})
	return created, err
}

func (sdb *DB) ReadFollowRequest(followerId, followeeId uuid.UUID) (error, *domain.FollowRequest) {
	row := sdb.db.QueryRow(sqlSelectFollowRequest, followerId.String(), followeeId.String())
	var fr domain.FollowRequest
	var idStr, followerStr, followeeStr string
	err := row.Scan(&idStr, &followerStr, &followeeStr, &fr.RequestURI, &fr.CreatedAt)
	if err != nil {
		return err, nil
	}
	fr.Id, _ = uuid.Parse(idStr)
	fr.FollowerId, _ = uuid.Parse(followerStr)
	fr.FolloweeId, _ = uuid.Parse(followeeStr)
	return nil, &fr
}

func (sdb *DB) DeleteFollowRequest(followerId, followeeId uuid.UUID) (int64, error) {
	var removed int64
	err := sdb.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlDeleteFollowRequest, followerId.String(), followeeId.String())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// Blocking operations

func (sdb *DB) CreateBlocking(b *domain.Blocking) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertBlocking, b.Id.String(), b.BlockerId.String(), b.BlockeeId.String(), b.CreatedAt)
		return err
	})
}

func (sdb *DB) IsBlocking(blockerId, blockeeId uuid.UUID) (bool, error) {
	var count int
	err := sdb.db.QueryRow(sqlSelectBlocking, blockerId.String(), blockeeId.String()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Note operations

func (sdb *DB) CreateNote(note *domain.Note) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		var renoteId any
		if note.RenoteId != nil {
			renoteId = note.RenoteId.String()
		}
		_, err := tx.Exec(sqlInsertNote,
			note.Id.String(), note.UserId.String(), note.URI, note.Content, note.Visibility,
			renoteId, note.InReplyToURI, note.LikeCount, note.RenoteCount, note.ReplyCount,
			note.CreatedAt,
		)
		return err
	})
}

func scanNote(row *sql.Row) (error, *domain.Note) {
	var note domain.Note
	var idStr, userStr string
	var renoteStr sql.NullString
	err := row.Scan(
		&idStr, &userStr, &note.URI, &note.Content, &note.Visibility, &renoteStr,
		&note.InReplyToURI, &note.LikeCount, &note.RenoteCount, &note.ReplyCount, &note.CreatedAt,
	)
	if err != nil {
		return err, nil
	}
	note.Id, _ = uuid.Parse(idStr)
	note.UserId, _ = uuid.Parse(userStr)
	if renoteStr.Valid {
		if rid, err := uuid.Parse(renoteStr.String); err == nil {
			note.RenoteId = &rid
		}
	}
	return nil, &note
}

func (sdb *DB) ReadNoteById(id uuid.UUID) (error, *domain.Note) {
	return scanNote(sdb.db.QueryRow(sqlSelectNoteById, id.String()))
}

func (sdb *DB) ReadNoteByURI(uri string) (error, *domain.Note) {
	return scanNote(sdb.db.QueryRow(sqlSelectNoteByURI, uri))
}

func (sdb *DB) UpdateNoteContent(uri, content string, ownerId uuid.UUID) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateNoteContent, content, uri, ownerId.String())
		return err
	})
}

func (sdb *DB) DeleteNoteByURI(uri string, ownerId uuid.UUID) (int64, error) {
	var removed int64
	err := sdb.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlDeleteNoteByURI, uri, ownerId.String())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func (sdb *DB) DeleteRenote(userId, renoteId uuid.UUID) (int64, error) {
	var removed int64
	err := sdb.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlDeleteRenote, userId.String(), renoteId.String())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func (sdb *DB) IncrementLikeCount(noteId uuid.UUID, delta int) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlBumpLikeCount, delta, noteId.String())
		return err
	})
}

func (sdb *DB) IncrementRenoteCount(noteId uuid.UUID, delta int) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlBumpRenoteCount, delta, noteId.String())
		return err
	})
}

func (sdb *DB) IncrementReplyCountByURI(parentURI string) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlBumpReplyCountByURI, parentURI)
		return err
	})
}

// Like operations

func (sdb *DB) CreateLike(like *domain.Like) (bool, error) {
	var created bool
	err := sdb.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlInsertLike,
			like.Id.String(), like.UserId.String(), like.NoteId.String(), like.URI, like.CreatedAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n > 0
		return nil
	})
	return created, err
}

func (sdb *DB) DeleteLike(userId, noteId uuid.UUID) (int64, error) {
	var removed int64
	err := sdb.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlDeleteLike, userId.String(), noteId.String())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// Bite operations

func (sdb *DB) CreateBite(bite *domain.Bite) error {
	if err := bite.Validate(); err != nil {
		return err
	}
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		var targetUser, targetNote, targetBite any
		if bite.TargetUserId != nil {
			targetUser = bite.TargetUserId.String()
		}
		if bite.TargetNoteId != nil {
			targetNote = bite.TargetNoteId.String()
		}
		if bite.TargetBiteId != nil {
			targetBite = bite.TargetBiteId.String()
		}
		_, err := tx.Exec(sqlInsertBite,
			bite.Id.String(), bite.URI, bite.UserId.String(), targetUser, targetNote, targetBite, bite.CreatedAt)
		return err
	})
}

func scanBite(row *sql.Row) (error, *domain.Bite) {
	var bite domain.Bite
	var idStr, userStr string
	var targetUser, targetNote, targetBite sql.NullString
	err := row.Scan(&idStr, &bite.URI, &userStr, &targetUser, &targetNote, &targetBite, &bite.CreatedAt)
	if err != nil {
		return err, nil
	}
	bite.Id, _ = uuid.Parse(idStr)
	bite.UserId, _ = uuid.Parse(userStr)
	if targetUser.Valid {
		if id, err := uuid.Parse(targetUser.String); err == nil {
			bite.TargetUserId = &id
		}
	}
	if targetNote.Valid {
		if id, err := uuid.Parse(targetNote.String); err == nil {
			bite.TargetNoteId = &id
		}
	}
	if targetBite.Valid {
		if id, err := uuid.Parse(targetBite.String); err == nil {
			bite.TargetBiteId = &id
		}
	}
	return nil, &bite
}

func (sdb *DB) ReadBiteById(id uuid.UUID) (error, *domain.Bite) {
	return scanBite(sdb.db.QueryRow(sqlSelectBiteById, id.String()))
}

func (sdb *DB) ReadBiteByURI(uri string) (error, *domain.Bite) {
	return scanBite(sdb.db.QueryRow(sqlSelectBiteByURI, uri))
}

// Notification operations

func (sdb *DB) CreateNotification(n *domain.Notification) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		var noteId, biteId any
		if n.NoteId != nil {
			noteId = n.NoteId.String()
		}
		if n.BiteId != nil {
			biteId = n.BiteId.String()
		}
		_, err := tx.Exec(sqlInsertNotification,
			n.Id.String(), n.AccountId.String(), string(n.NotificationType), n.ActorId.String(),
			n.ActorUsername, n.ActorHost, noteId, biteId, n.Read, n.CreatedAt)
		return err
	})
}

func (sdb *DB) DeleteNotification(accountId, actorId uuid.UUID, ntype domain.NotificationType) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteNotification, accountId.String(), actorId.String(), string(ntype))
		return err
	})
}

// Instance operations

func (sdb *DB) UpsertInstance(host string, seenAt time.Time) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertInstance, host, seenAt, seenAt)
		return err
	})
}

// Activity log operations

func (sdb *DB) CreateActivity(activity *domain.Activity) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActivity,
			activity.Id.String(), activity.ActivityURI, activity.ActivityType,
			activity.ActorURI, activity.ObjectURI, activity.RawJSON,
			activity.Processed, activity.Local, activity.CreatedAt)
		return err
	})
}

func (sdb *DB) UpdateActivity(activity *domain.Activity) error {
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateActivity, activity.RawJSON, activity.Processed, activity.Id.String())
		return err
	})
}

func (sdb *DB) ReadActivityByURI(uri string) (error, *domain.Activity) {
	row := sdb.db.QueryRow(sqlSelectActivityByURI, uri)
	var a domain.Activity
	var idStr string
	err := row.Scan(&idStr, &a.ActivityURI, &a.ActivityType, &a.ActorURI, &a.ObjectURI,
		&a.RawJSON, &a.Processed, &a.Local, &a.CreatedAt)
	if err != nil {
		return err, nil
	}
	a.Id, _ = uuid.Parse(idStr)
	return nil, &a
}

// Delivery queue operations

func (sdb *DB) EnqueueDeliveryJob(job *domain.DeliveryJob) error {
	recipients, err := json.Marshal(job.RecipientIds)
	if err != nil {
		return err
	}
	return sdb.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertDeliveryJob,
			job.Id.String(), job.ActorId.String(), string(recipients),
			job.ActivityJSON, job.ToFollowers, job.CreatedAt)
		return err
	})
}

func (sdb *DB) ReadPendingDeliveryJobs(limit int) (error, *[]domain.DeliveryJob) {
	rows, err := sdb.db.Query(sqlSelectDeliveryJobs, limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var jobs []domain.DeliveryJob
	for rows.Next() {
		var job domain.DeliveryJob
		var idStr, actorStr, recipientsStr string
		if err := rows.Scan(&idStr, &actorStr, &recipientsStr, &job.ActivityJSON, &job.ToFollowers, &job.CreatedAt); err != nil {
			return err, nil
		}
		job.Id, _ = uuid.Parse(idStr)
		job.ActorId, _ = uuid.Parse(actorStr)
		if err := json.Unmarshal([]byte(recipientsStr), &job.RecipientIds); err != nil {
			log.Printf("DB: malformed recipient list on job %s: %v", idStr, err)
		}
		jobs = append(jobs, job)
	}
	return rows.Err(), &jobs
}
