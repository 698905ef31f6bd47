package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"

	"crashsentry/agent/cfg"
	"crashsentry/common/format/report"
	"crashsentry/common/sentry"
	"crashsentry/common/store"
	"crashsentry/common/utils"
)

const maxFieldLength = 1024

type BaseReply struct {
	Status string `json:"status"`
}

type StatusReply struct {
	Installed      string            `json:"installed"`
	Handling       bool              `json:"handling"`
	Reports        int               `json:"reports"`
	InstallationId string            `json:"installation_id"`
	States         map[string]string `json:"states"`
}

type ReportSummary struct {
	Id        string `json:"id"`
	CrashType string `json:"crash_type"`
	Reason    string `json:"reason"`
	Signature string `json:"signature"`
	DateAdded string `json:"date_added"`
}

type UserReport struct {
	Name          string   `json:"name" form:"name"`
	Reason        string   `json:"reason" form:"reason" binding:"required"`
	Language      string   `json:"language" form:"language"`
	LineOfCode    string   `json:"line_of_code" form:"line_of_code"`
	StackTrace    []string `json:"stack_trace" form:"stack_trace"`
	LogAllThreads bool     `json:"log_all_threads" form:"log_all_threads"`
}

type CreatedReply struct {
	Status string `json:"status"`
	Id     string `json:"id,omitempty"`
}

// Sentry is the part of sentry.Session the control surface drives.
type Sentry interface {
	Installed() sentry.CrashType
	Handling() bool
	State(t sentry.CrashType) sentry.HandlerState
	ReportUserException(e sentry.UserException) (string, error)
}

type Reports interface {
	ReportCount() int
	IDs() ([]string, error)
	Load(id string) (*report.Report, error)
	Delete(id string) error
}

type GinAgentService struct {
	engine         *gin.Engine
	conf           cfg.Config
	session        Sentry
	reports        Reports
	installationId string
	deliver        func()
}

func NewGinAgentService(conf cfg.Config, session Sentry, reports Reports, installationId string, deliver func()) *GinAgentService {
	return &GinAgentService{
		conf:           conf,
		session:        session,
		reports:        reports,
		installationId: installationId,
		deliver:        deliver,
	}
}

func (m *GinAgentService) Init() error {
	if m.session == nil || m.reports == nil {
		return errors.New("agent service needs a session and a report store")
	}

	m.engine = gin.New()
	m.engine.Use(gin.Recovery(), m.logRequest())

	m.applyRoutes()
	return nil
}

func (m *GinAgentService) Handler() http.Handler {
	return m.engine
}

func (m *GinAgentService) Start() error {
	addres := fmt.Sprintf("%s:%d", m.conf.Host(), m.conf.Port())
	log.WithField("address", addres).Info("Run on")
	return m.engine.Run(addres)
}

func (m *GinAgentService) setSuccessStatus(c *gin.Context) {
	rMsg := &BaseReply{"success"}
	c.JSON(http.StatusOK, rMsg)
}

func (m *GinAgentService) setServerError(descr string, c *gin.Context) {
	rMsg := &BaseReply{fmt.Sprintf("error: %s", descr)}
	c.JSON(http.StatusInternalServerError, rMsg)
}

func (m *GinAgentService) setBadRequest(descr string, c *gin.Context) {
	rMsg := &BaseReply{fmt.Sprintf("error: %s", descr)}
	c.JSON(http.StatusBadRequest, rMsg)
}

func (m *GinAgentService) setNotFound(descr string, c *gin.Context) {
	rMsg := &BaseReply{fmt.Sprintf("error: %s", descr)}
	c.JSON(http.StatusNotFound, rMsg)
}

func (m *GinAgentService) applyRoutes() {
	m.engine.GET("/status", m.GetStatus())
	m.engine.GET("/reports", m.GetReports())
	m.engine.GET("/reports/:id", m.GetReport())
	m.engine.DELETE("/reports/:id", m.DeleteReport())
	m.engine.POST("/reports/send", m.PostSend())
	m.engine.POST("/report", m.PostUserReport())
}

func (m *GinAgentService) logRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Debug("Request")
	}
}

func (m *GinAgentService) GetStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		installed := m.session.Installed()
		states := map[string]string{}
		for t := sentry.CrashType(1); t&sentry.CrashTypeAll != 0; t <<= 1 {
			if installed.Has(t) {
				states[t.String()] = m.session.State(t).String()
			}
		}

		c.JSON(http.StatusOK, &StatusReply{
			Installed:      installed.String(),
			Handling:       m.session.Handling(),
			Reports:        m.reports.ReportCount(),
			InstallationId: m.installationId,
			States:         states,
		})
	}
}

func (m *GinAgentService) GetReports() gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := m.reports.IDs()
		if err != nil {
			m.setServerError("Can't list reports", c)
			return
		}

		summaries := make([]ReportSummary, 0, len(ids))
		for _, id := range ids {
			r, err := m.reports.Load(id)
			if err != nil {
				continue
			}
			summaries = append(summaries, ReportSummary{
				Id:        r.Id,
				CrashType: r.CrashType,
				Reason:    r.Reason,
				Signature: r.Signature,
				DateAdded: r.DateAdded.Format(time.RFC3339),
			})
		}
		c.JSON(http.StatusOK, summaries)
	}
}

func (m *GinAgentService) GetReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := m.reports.Load(c.Param("id"))
		if errors.Is(err, store.ErrNotFound) {
			m.setNotFound("Unknown report", c)
			return
		}
		if err != nil {
			m.setServerError("Can't load report", c)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func (m *GinAgentService) DeleteReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := m.reports.Delete(c.Param("id"))
		if errors.Is(err, store.ErrNotFound) {
			m.setNotFound("Unknown report", c)
			return
		}
		if err != nil {
			m.setServerError("Can't remove report", c)
			return
		}
		m.setSuccessStatus(c)
	}
}

func (m *GinAgentService) PostSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.deliver == nil {
			m.setBadRequest("No sink configured", c)
			return
		}
		m.deliver()
		c.JSON(http.StatusAccepted, &BaseReply{"scheduled"})
	}
}

func (m *GinAgentService) PostUserReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		var ur UserReport
		if err := c.ShouldBind(&ur); err != nil {
			m.setBadRequest("Field reason can't be empty", c)
			return
		}

		e := sentry.UserException{
			Name:          utils.Clean(ur.Name, maxFieldLength),
			Reason:        utils.Clean(ur.Reason, maxFieldLength),
			Language:      utils.Clean(ur.Language, maxFieldLength),
			LineOfCode:    utils.Clean(ur.LineOfCode, maxFieldLength),
			StackTrace:    ur.StackTrace,
			LogAllThreads: ur.LogAllThreads,
		}
		if e.Name == "" {
			e.Name = "UserReported"
		}
		if e.Reason == "" {
			m.setBadRequest("Field reason can't be empty", c)
			return
		}

		id, err := m.session.ReportUserException(e)
		switch {
		case errors.Is(err, sentry.ErrNotInstalled):
			m.setBadRequest("User reports are not enabled", c)
			return
		case errors.Is(err, sentry.ErrCrashInProgress):
			c.JSON(http.StatusConflict, &BaseReply{"error: Another crash is being handled"})
			return
		case err != nil:
			log.WithError(err).Error("Can't report user exception")
			m.setServerError("Can't report user exception", c)
			return
		}

		if id == "" {
			m.setServerError("User report was captured but not saved", c)
			return
		}

		log.WithFields(log.Fields{
			"id":     id,
			"name":   e.Name,
			"reason": e.Reason,
		}).Debug("User report captured")
		c.JSON(http.StatusCreated, &CreatedReply{Status: "success", Id: id})
	}
}
