package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/db"
	"github.com/loxodon-net/loxodon/util"
)

// apContentType is what we serve ActivityPub documents as.
const apContentType = "application/activity+json; charset=utf-8"

// HandleActor serves a local user's actor document.
func HandleActor(c *gin.Context, conf *util.AppConfig) {
	username := c.Param("actor")
	if ok, _ := util.IsValidWebFingerUsername(username); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such user"})
		return
	}
	database := db.GetDB()

	err, user := database.ReadUserByAcct(username, "")
	if err != nil || user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such user"})
		return
	}
	err, keypair := database.ReadKeypairByUserId(user.Id)
	if err != nil || keypair == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such user"})
		return
	}

	domainName := conf.Conf.SslDomain
	actorURI := fmt.Sprintf("https://%s/users/%s", domainName, user.Username)

	displayName := user.DisplayName
	if displayName == "" {
		displayName = user.Username
	}

	doc := gin.H{
		"@context": []string{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		"id":                        actorURI,
		"type":                      "Person",
		"preferredUsername":         user.Username,
		"name":                      displayName,
		"summary":                   user.Summary,
		"inbox":                     actorURI + "/inbox",
		"outbox":                    actorURI + "/outbox",
		"followers":                 actorURI + "/followers",
		"following":                 actorURI + "/following",
		"url":                       fmt.Sprintf("https://%s/u/%s", domainName, user.Username),
		"manuallyApprovesFollowers": user.IsLocked,
		"discoverable":              true,
		"endpoints": gin.H{
			"sharedInbox": fmt.Sprintf("https://%s/inbox", domainName),
		},
		"publicKey": gin.H{
			"id":           actorURI + "#main-key",
			"owner":        actorURI,
			"publicKeyPem": keypair.PublicPem,
		},
	}

	c.Header("Content-Type", apContentType)
	c.JSON(http.StatusOK, doc)
}

// HandleNote serves a local note as an ActivityPub object.
func HandleNote(c *gin.Context, conf *util.AppConfig) {
	noteId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid note id"})
		return
	}

	database := db.GetDB()
	err, note := database.ReadNoteById(noteId)
	if err != nil || note == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
		return
	}
	err, author := database.ReadUserById(note.UserId)
	if err != nil || author == nil || author.IsRemote() {
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
		return
	}

	domainName := conf.Conf.SslDomain
	noteURI := fmt.Sprintf("https://%s/notes/%s", domainName, note.Id)
	actorURI := fmt.Sprintf("https://%s/users/%s", domainName, author.Username)

	doc := gin.H{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           noteURI,
		"type":         "Note",
		"attributedTo": actorURI,
		"content":      note.Content,
		"published":    note.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		"to":           []string{"https://www.w3.org/ns/activitystreams#Public"},
		"cc":           []string{actorURI + "/followers"},
	}
	if note.InReplyToURI != "" {
		doc["inReplyTo"] = note.InReplyToURI
	}

	c.Header("Content-Type", apContentType)
	c.JSON(http.StatusOK, doc)
}
