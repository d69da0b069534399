package auth

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"modelboot-go/internal/constants"
	booterrors "modelboot-go/internal/errors"
)

type callbackResult struct {
	code string
	err  error
}

// callbackServer serves exactly one OAuth redirect on a loopback listener.
// Requests with a wrong state never deliver a result; the flow keeps
// waiting for the genuine redirect.
type callbackServer struct {
	srv     *http.Server
	state   string
	results chan callbackResult
	once    sync.Once
}

const callbackDoneHTML = `<!DOCTYPE html>
<html><head><title>Login complete</title></head>
<body><p>Login complete. You may close this window and return to the assistant.</p></body></html>`

func newCallbackServer(ln net.Listener, state string) *callbackServer {
	cs := &callbackServer{
		state:   state,
		results: make(chan callbackResult, 1),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Loopback only, but the port is still guessable; keep abusive
	// clients from hammering the handler.
	limiter := rate.NewLimiter(rate.Limit(5), 10)
	router.Use(func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
			return
		}
		c.Next()
	})

	router.GET("/oauth/callback", cs.handleCallback)

	cs.srv = &http.Server{Handler: router}
	go func() {
		if err := cs.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithFields(log.Fields{"component": "auth"}).
				Warnf("oauth callback server stopped: %v", err)
		}
	}()
	return cs
}

func (cs *callbackServer) handleCallback(c *gin.Context) {
	if c.Query("state") != cs.state {
		log.WithFields(log.Fields{"component": "auth"}).
			Warn("oauth callback with mismatched state, ignoring")
		c.String(http.StatusBadRequest, "state mismatch")
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		cs.deliver(callbackResult{err: booterrors.ErrAuthRejected})
		c.String(http.StatusOK, "Login was denied. You may close this window.")
		return
	}

	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, "missing authorization code")
		return
	}
	cs.deliver(callbackResult{code: code})
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, callbackDoneHTML)
}

func (cs *callbackServer) deliver(res callbackResult) {
	cs.once.Do(func() { cs.results <- res })
}

// Result yields the single callback outcome.
func (cs *callbackServer) Result() <-chan callbackResult {
	return cs.results
}

// Shutdown stops the listener. Safe to call after the result was read.
func (cs *callbackServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.CallbackShutdownTimeout)
	defer cancel()
	_ = cs.srv.Shutdown(ctx)
}
