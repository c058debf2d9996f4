package db

import (
	"fmt"
	"log"
)

// DDL for the federation schema. All statements are idempotent so migrations
// can run on every startup.
const (
	sqlCreateUsersTable = `CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		host TEXT NOT NULL DEFAULT '',
		uri TEXT NOT NULL DEFAULT '',
		profile_url TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		inbox_uri TEXT NOT NULL DEFAULT '',
		shared_inbox_uri TEXT NOT NULL DEFAULT '',
		outbox_uri TEXT NOT NULL DEFAULT '',
		public_key_pem TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		is_locked INTEGER NOT NULL DEFAULT 0,
		followers_count INTEGER NOT NULL DEFAULT 0,
		following_count INTEGER NOT NULL DEFAULT 0,
		last_fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, host)
	)`

	sqlCreateUsersIndices = `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_uri ON users(uri) WHERE uri != '';
		CREATE INDEX IF NOT EXISTS idx_users_profile_url ON users(profile_url);
		CREATE INDEX IF NOT EXISTS idx_users_host ON users(host);
	`

	sqlCreateKeypairsTable = `CREATE TABLE IF NOT EXISTS user_keypairs (
		user_id TEXT NOT NULL PRIMARY KEY,
		public_pem TEXT NOT NULL,
		private_pem TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateFollowingsTable = `CREATE TABLE IF NOT EXISTS followings (
		id TEXT NOT NULL PRIMARY KEY,
		follower_id TEXT NOT NULL,
		followee_id TEXT NOT NULL,
		follower_host TEXT NOT NULL DEFAULT '',
		follower_inbox_uri TEXT NOT NULL DEFAULT '',
		follower_shared_inbox TEXT NOT NULL DEFAULT '',
		followee_host TEXT NOT NULL DEFAULT '',
		followee_inbox_uri TEXT NOT NULL DEFAULT '',
		followee_shared_inbox TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(follower_id, followee_id)
	)`

	sqlCreateFollowingsIndices = `
		CREATE INDEX IF NOT EXISTS idx_followings_follower_id ON followings(follower_id);
		CREATE INDEX IF NOT EXISTS idx_followings_followee_id ON followings(followee_id);
	`

	sqlCreateFollowRequestsTable = `CREATE TABLE IF NOT EXISTS follow_requests (
		id TEXT NOT NULL PRIMARY KEY,
		follower_id TEXT NOT NULL,
		followee_id TEXT NOT NULL,
		request_uri TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(follower_id, followee_id)
	)`

	sqlCreateBlockingsTable = `CREATE TABLE IF NOT EXISTS blockings (
		id TEXT NOT NULL PRIMARY KEY,
		blocker_id TEXT NOT NULL,
		blockee_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(blocker_id, blockee_id)
	)`

	sqlCreateNotesTable = `CREATE TABLE IF NOT EXISTS notes (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL,
		uri TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		visibility TEXT NOT NULL DEFAULT 'public',
		renote_id TEXT,
		in_reply_to_uri TEXT NOT NULL DEFAULT '',
		like_count INTEGER NOT NULL DEFAULT 0,
		renote_count INTEGER NOT NULL DEFAULT 0,
		reply_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateNotesIndices = `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_uri ON notes(uri) WHERE uri != '';
		CREATE INDEX IF NOT EXISTS idx_notes_user_id ON notes(user_id);
		CREATE INDEX IF NOT EXISTS idx_notes_renote_id ON notes(renote_id);
	`

	sqlCreateLikesTable = `CREATE TABLE IF NOT EXISTS likes (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL,
		note_id TEXT NOT NULL,
		uri TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, note_id)
	)`

	sqlCreateBitesTable = `CREATE TABLE IF NOT EXISTS bites (
		id TEXT NOT NULL PRIMARY KEY,
		uri TEXT UNIQUE NOT NULL,
		user_id TEXT NOT NULL,
		target_user_id TEXT,
		target_note_id TEXT,
		target_bite_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CHECK (
			(target_user_id IS NOT NULL) + (target_note_id IS NOT NULL) + (target_bite_id IS NOT NULL) = 1
		)
	)`

	sqlCreateNotificationsTable = `CREATE TABLE IF NOT EXISTS notifications (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		notification_type TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_username TEXT NOT NULL DEFAULT '',
		actor_host TEXT NOT NULL DEFAULT '',
		note_id TEXT,
		bite_id TEXT,
		read INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateNotificationsIndices = `
		CREATE INDEX IF NOT EXISTS idx_notifications_account_id ON notifications(account_id, read);
	`

	sqlCreateInstancesTable = `CREATE TABLE IF NOT EXISTS instances (
		host TEXT NOT NULL PRIMARY KEY,
		first_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT UNIQUE NOT NULL,
		activity_type TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		object_uri TEXT,
		raw_json TEXT NOT NULL,
		processed INTEGER DEFAULT 0,
		local INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateDeliveryJobsTable = `CREATE TABLE IF NOT EXISTS delivery_jobs (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		recipient_ids TEXT NOT NULL DEFAULT '[]',
		activity_json TEXT NOT NULL,
		to_followers INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
)

// RunMigrations creates all federation tables and indices.
func (sdb *DB) RunMigrations() error {
	migrations := []struct {
		name string
		sql  string
	}{
		{"users table", sqlCreateUsersTable},
		{"users indices", sqlCreateUsersIndices},
		{"user_keypairs table", sqlCreateKeypairsTable},
		{"followings table", sqlCreateFollowingsTable},
		{"followings indices", sqlCreateFollowingsIndices},
		{"follow_requests table", sqlCreateFollowRequestsTable},
		{"blockings table", sqlCreateBlockingsTable},
		{"notes table", sqlCreateNotesTable},
		{"notes indices", sqlCreateNotesIndices},
		{"likes table", sqlCreateLikesTable},
		{"bites table", sqlCreateBitesTable},
		{"notifications table", sqlCreateNotificationsTable},
		{"notifications indices", sqlCreateNotificationsIndices},
		{"instances table", sqlCreateInstancesTable},
		{"activities table", sqlCreateActivitiesTable},
		{"delivery_jobs table", sqlCreateDeliveryJobsTable},
	}

	for _, m := range migrations {
		if _, err := sdb.db.Exec(m.sql); err != nil {
			return fmt.Errorf("migration %q failed: %w", m.name, err)
		}
	}

	log.Println("DB: federation schema migrations complete")
	return nil
}
