package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
)

// CheckMail triggers a full mail check for one account.
func CheckMail(controller interfaces.ControllerService, repos *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "CheckMailHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		account, err := repos.AccountRepository.GetAccount(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		controller.CheckMail(ctx, account, true, true, nil)
		c.JSON(http.StatusAccepted, gin.H{"status": "check scheduled"})
	}
}

// SyncFolder triggers synchronization of a single folder.
func SyncFolder(controller interfaces.ControllerService, repos *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SyncFolderHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		account, err := repos.AccountRepository.GetAccount(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		folderID := c.Param("folderId")
		if _, err := repos.FolderRepository.GetFolder(ctx, folderID); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
			return
		}

		controller.SynchronizeMailbox(ctx, account, folderID, true, nil)
		c.JSON(http.StatusAccepted, gin.H{"status": "sync scheduled"})
	}
}

// RefreshFolderList re-reads the remote folder list for one account.
func RefreshFolderList(controller interfaces.ControllerService, repos *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "RefreshFolderListHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		account, err := repos.AccountRepository.GetAccount(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		if err := controller.RefreshFolderList(ctx, account); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		folders, err := repos.FolderRepository.ListFolders(ctx, account.ID)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, folders)
	}
}

// SendPendingMessages drains the outbox of one account.
func SendPendingMessages(controller interfaces.ControllerService, repos *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SendPendingMessagesHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		account, err := repos.AccountRepository.GetAccount(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		controller.SendPendingMessages(account, nil)
		c.JSON(http.StatusAccepted, gin.H{"status": "send scheduled"})
	}
}

// ProcessPendingCommands replays the deferred remote mutations of one
// account.
func ProcessPendingCommands(controller interfaces.ControllerService, repos *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ProcessPendingCommandsHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		account, err := repos.AccountRepository.GetAccount(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		controller.ProcessPendingCommands(account)
		c.JSON(http.StatusAccepted, gin.H{"status": "replay scheduled"})
	}
}

// EmptyTrash clears the trash folder locally and remotely.
func EmptyTrash(controller interfaces.ControllerService, repos *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmptyTrashHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		account, err := repos.AccountRepository.GetAccount(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		controller.EmptyTrash(ctx, account, nil)
		c.JSON(http.StatusAccepted, gin.H{"status": "empty trash scheduled"})
	}
}

// EmptySpam clears the spam folder locally and remotely.
func EmptySpam(controller interfaces.ControllerService, repos *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmptySpamHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		account, err := repos.AccountRepository.GetAccount(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		controller.EmptySpam(ctx, account, nil)
		c.JSON(http.StatusAccepted, gin.H{"status": "empty spam scheduled"})
	}
}
