package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	apierrors "github.com/customeros/mailsync/api/errors"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type flagRequest struct {
	Refs  []models.MessageReference `json:"refs" binding:"required"`
	Flag  string                    `json:"flag" binding:"required"`
	Value bool                      `json:"value"`
}

type moveRequest struct {
	Refs           []models.MessageReference `json:"refs" binding:"required"`
	TargetFolderID string                    `json:"targetFolderId" binding:"required"`
}

type refsRequest struct {
	Refs []models.MessageReference `json:"refs" binding:"required"`
}

// validateRefs checks every reference in the batch and reports all
// problems at once instead of stopping at the first.
func validateRefs(refs []models.MessageReference) *apierrors.MultiErrors {
	multi := apierrors.NewMultiErrors()
	for i, ref := range refs {
		key := fmt.Sprintf("refs[%d]", i)
		if ref.AccountID == "" {
			multi.Add(key, "accountId is required", nil)
		}
		if ref.FolderID == "" {
			multi.Add(key, "folderId is required", nil)
		}
		if ref.MessageID == "" {
			multi.Add(key, "messageId is required", nil)
		}
	}
	if multi.HasErrors() {
		return multi
	}
	return nil
}

// SetFlag toggles a flag on a batch of messages.
func SetFlag(controller interfaces.ControllerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SetFlagHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req flagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if multi := validateRefs(req.Refs); multi != nil {
			tracing.TraceErr(span, multi)
			c.JSON(http.StatusBadRequest, gin.H{"error": multi.Error()})
			return
		}

		controller.SetFlag(ctx, req.Refs, enum.Flag(req.Flag), req.Value)
		c.JSON(http.StatusAccepted, gin.H{"status": "flag change scheduled"})
	}
}

// MoveMessages moves a batch of messages into the target folder.
func MoveMessages(controller interfaces.ControllerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MoveMessagesHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req moveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if multi := validateRefs(req.Refs); multi != nil {
			tracing.TraceErr(span, multi)
			c.JSON(http.StatusBadRequest, gin.H{"error": multi.Error()})
			return
		}

		controller.MoveMessages(ctx, req.Refs, req.TargetFolderID)
		c.JSON(http.StatusAccepted, gin.H{"status": "move scheduled"})
	}
}

// CopyMessages copies a batch of messages into the target folder.
func CopyMessages(controller interfaces.ControllerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "CopyMessagesHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req moveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if multi := validateRefs(req.Refs); multi != nil {
			tracing.TraceErr(span, multi)
			c.JSON(http.StatusBadRequest, gin.H{"error": multi.Error()})
			return
		}

		controller.CopyMessages(ctx, req.Refs, req.TargetFolderID)
		c.JSON(http.StatusAccepted, gin.H{"status": "copy scheduled"})
	}
}

// ArchiveMessages moves a batch of messages to their account archive
// folders.
func ArchiveMessages(controller interfaces.ControllerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ArchiveMessagesHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req refsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if multi := validateRefs(req.Refs); multi != nil {
			tracing.TraceErr(span, multi)
			c.JSON(http.StatusBadRequest, gin.H{"error": multi.Error()})
			return
		}

		controller.ArchiveMessages(ctx, req.Refs)
		c.JSON(http.StatusAccepted, gin.H{"status": "archive scheduled"})
	}
}

// MoveToSpam moves a batch of messages to their account spam folders.
func MoveToSpam(controller interfaces.ControllerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MoveToSpamHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req refsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if multi := validateRefs(req.Refs); multi != nil {
			tracing.TraceErr(span, multi)
			c.JSON(http.StatusBadRequest, gin.H{"error": multi.Error()})
			return
		}

		controller.MoveToSpam(ctx, req.Refs)
		c.JSON(http.StatusAccepted, gin.H{"status": "spam move scheduled"})
	}
}

// DeleteMessages deletes a batch of messages honoring each account's
// delete policy.
func DeleteMessages(controller interfaces.ControllerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "DeleteMessagesHandler")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req refsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if multi := validateRefs(req.Refs); multi != nil {
			tracing.TraceErr(span, multi)
			c.JSON(http.StatusBadRequest, gin.H{"error": multi.Error()})
			return
		}

		controller.DeleteMessages(ctx, req.Refs)
		c.JSON(http.StatusAccepted, gin.H{"status": "delete scheduled"})
	}
}
