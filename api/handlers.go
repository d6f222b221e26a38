package api

import (
	"bytes"
	"image/png"
	"io"
	"net/http"
	"time"

	"bouncer/hal"
	"bouncer/internal/buildinfo"
	"bouncer/link"
	"bouncer/sketch"

	"github.com/gin-gonic/gin"
)

const maxInjectBytes = 4096

// StateResponse combines the sketch snapshot with the link status.
type StateResponse struct {
	Sketch sketch.State  `json:"sketch"`
	Link   *link.Status `json:"link,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data: gin.H{
			"status":  "ok",
			"version": version(),
			"build":   buildinfo.Full(),
			"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		},
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{Status: "success", Data: s.state()})
}

func (s *Server) state() StateResponse {
	resp := StateResponse{Sketch: s.opts.Sketch.State()}
	if s.opts.Link != nil {
		st := s.opts.Link.Status()
		resp.Link = &st
	}
	return resp
}

func (s *Server) handlePorts(c *gin.Context) {
	if s.opts.Ports == nil {
		c.JSON(http.StatusOK, ApiResponse{Status: "success", Data: []string{}})
		return
	}
	names, err := s.opts.Ports.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ApiResponse{Status: "error", Error: err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, ApiResponse{Status: "success", Data: names})
}

func (s *Server) handleFrame(c *gin.Context) {
	fb := s.opts.Framebuffer
	if fb == nil {
		c.JSON(http.StatusNotFound, ApiResponse{Status: "error", Error: "no framebuffer"})
		return
	}
	img := hal.ToRGBA(fb.Snapshot(nil), fb.Width(), fb.Height())

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		c.JSON(http.StatusInternalServerError, ApiResponse{Status: "error", Error: err.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// handleLinkInject feeds the request body through the link reader.
func (s *Server) handleLinkInject(c *gin.Context) {
	if s.opts.Link == nil {
		c.JSON(http.StatusConflict, ApiResponse{Status: "error", Error: "link disabled"})
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxInjectBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, ApiResponse{Status: "error", Error: err.Error()})
		return
	}
	if err := s.opts.Link.Inject(body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ApiResponse{Status: "error", Error: err.Error(), Data: s.opts.Link.Status()})
		return
	}
	c.JSON(http.StatusOK, ApiResponse{Status: "success", Data: s.opts.Link.Status()})
}
