package httptransport

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/service"
	"github.com/rockfordlhotka/calendar-mcp/internal/store"
)

func (h *Handler) health(c *gin.Context) {
	accounts, _ := h.svc.ListAccounts(c.Request.Context())
	enabled := 0
	for _, a := range accounts {
		if a.Enabled {
			enabled++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"accounts": len(accounts),
		"enabled":  enabled,
	})
}

func (h *Handler) listAccounts(c *gin.Context) {
	accounts, err := h.svc.ListAccounts(c.Request.Context())
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Success(c, accounts)
}

func (h *Handler) getEmails(c *gin.Context) {
	var req service.GetEmailsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.GetEmails(c.Request.Context(), req)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Success(c, res)
}

func (h *Handler) searchEmails(c *gin.Context) {
	var req service.SearchEmailsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.SearchEmails(c.Request.Context(), req)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Success(c, res)
}

func (h *Handler) getEmailDetail(c *gin.Context) {
	msg, err := h.svc.GetEmailDetail(c.Request.Context(), c.Param("id"), c.Param("emailId"))
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Success(c, msg)
}

func (h *Handler) sendEmail(c *gin.Context) {
	var req service.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	out, err := h.svc.SendEmail(c.Request.Context(), req)
	if err != nil {
		Fail(c, err, out)
		return
	}
	Created(c, out)
}

func (h *Handler) listCalendars(c *gin.Context) {
	res, err := h.svc.ListCalendars(c.Request.Context(), c.Query("accountId"))
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Success(c, res)
}

func (h *Handler) getEvents(c *gin.Context) {
	var req service.GetEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.GetCalendarEvents(c.Request.Context(), req)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Success(c, res)
}

func (h *Handler) createEvent(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	out, err := h.svc.CreateEvent(c.Request.Context(), req)
	if err != nil {
		Fail(c, err, out)
		return
	}
	Created(c, out)
}

func (h *Handler) updateEvent(c *gin.Context) {
	var upd model.EventUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		BadRequest(c, err.Error())
		return
	}
	out, err := h.svc.UpdateEvent(c.Request.Context(), service.UpdateEventRequest{
		AccountID:  c.Param("id"),
		CalendarID: c.Param("calendarId"),
		EventID:    c.Param("eventId"),
		Update:     upd,
	})
	if err != nil {
		Fail(c, err, out)
		return
	}
	Success(c, out)
}

func (h *Handler) deleteEvent(c *gin.Context) {
	out, err := h.svc.DeleteEvent(c.Request.Context(), c.Param("id"), c.Param("calendarId"), c.Param("eventId"))
	if err != nil {
		Fail(c, err, out)
		return
	}
	Success(c, out)
}

func (h *Handler) listWrites(c *gin.Context) {
	if h.store == nil {
		Error(c, http.StatusNotImplemented, "write journal disabled", nil)
		return
	}

	filter := store.WriteFilter{Limit: 50}
	if id := c.Query("accountId"); id != "" {
		filter.AccountID = &id
	}
	if op := c.Query("operation"); op != "" {
		filter.Operation = &op
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			BadRequest(c, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	writes, err := h.store.GetWrites(c.Request.Context(), filter)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	if writes == nil {
		writes = []model.WriteRecord{}
	}
	Success(c, writes)
}
