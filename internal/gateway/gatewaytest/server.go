// Package gatewaytest provides an in-memory backend for tests of the REST
// client and everything built on it.
package gatewaytest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Tiliavir/tsheet/internal/model"
)

const signingKey = "gatewaytest-secret"

type failure struct {
	status  int
	message string
}

// Server is a fake backend served over httptest.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	records   []model.Record
	users     []model.User
	passwords map[string]string
	tokens    map[string]string // token -> user id
	failures  map[string]failure
	requests  []string
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		passwords: map[string]string{},
		tokens:    map[string]string{},
		failures:  map[string]failure{},
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to configure clients with.
func (s *Server) BaseURL() string { return s.URL + "/api" }

// AddUser registers an account and returns it with its id filled in.
func (s *Server) AddUser(u model.User, password string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	s.users = append(s.users, u)
	s.passwords[u.Email] = password
	return u
}

// Issue returns a signed token for u that the server accepts.
func (s *Server) Issue(u model.User) string {
	claims := jwt.MapClaims{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
		"role":  string(u.Role),
		"jti":   uuid.NewString(),
	}
	if u.PreferredHours != nil {
		claims["preferedHours"] = *u.PreferredHours
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.tokens[tok] = u.ID
	s.mu.Unlock()
	return tok
}

// AddRecord stores r for owner and returns it with its id filled in.
func (s *Server) AddRecord(owner model.User, r model.Record) model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Owner = &model.Owner{ID: owner.ID, Name: owner.Name, Email: owner.Email}
	s.records = append(s.records, r)
	return r
}

// Records returns a copy of every stored record.
func (s *Server) Records() []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Record(nil), s.records...)
}

// Users returns a copy of every stored user.
func (s *Server) Users() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.User(nil), s.users...)
}

// Fail makes every request matching method and route pattern (for example
// "PUT", "/records/:id") answer with status and message until Clear.
func (s *Server) Fail(method, route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+route] = failure{status: status, message: message}
}

// Clear removes every injected failure.
func (s *Server) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[string]failure{}
}

// Requests lists "METHOD /path?query" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(s.record, s.inject)

	api := r.Group("/api")
	api.POST("/auth/login", s.login)
	api.POST("/auth/register", s.register)

	authed := api.Group("", s.authenticate)
	authed.GET("/records", s.listRecords)
	authed.GET("/records/filter", s.listRecords)
	authed.GET("/records/all-records", s.allRecords)
	authed.GET("/records/export/:userId", s.exportRecords)
	authed.POST("/records", s.createRecord)
	authed.POST("/records/admin-record-create/:email", s.createRecordFor)
	authed.PUT("/records/:id", s.updateRecord)
	authed.DELETE("/records/:id", s.deleteRecord)
	authed.GET("/users", s.listUsers)
	authed.PUT("/users/:id", s.updateUser)
	authed.DELETE("/users/:id", s.deleteUser)
	return r
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, c.Request.Method+" "+c.Request.URL.RequestURI())
	s.mu.Unlock()
	c.Next()
}

func (s *Server) inject(c *gin.Context) {
	route := strings.TrimPrefix(c.FullPath(), "/api")
	s.mu.Lock()
	f, ok := s.failures[c.Request.Method+" "+route]
	s.mu.Unlock()
	if ok {
		c.AbortWithStatusJSON(f.status, gin.H{"message": f.message})
		return
	}
	c.Next()
}

func (s *Server) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tok := strings.TrimPrefix(header, "Bearer ")
	s.mu.Lock()
	id, ok := s.tokens[tok]
	s.mu.Unlock()
	if header == "" || !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	u, found := s.user(id)
	if !found {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	c.Set("user", u)
	c.Next()
}

func current(c *gin.Context) model.User {
	return c.MustGet("user").(model.User)
}

func (s *Server) user(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

func (s *Server) login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	s.mu.Lock()
	pw, known := s.passwords[body.Email]
	var found model.User
	for _, u := range s.users {
		if u.Email == body.Email {
			found = u
		}
	}
	s.mu.Unlock()
	if !known || pw != body.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": s.Issue(found)})
}

func (s *Server) register(c *gin.Context) {
	var body struct {
		Name           string     `json:"name"`
		Email          string     `json:"email"`
		Password       string     `json:"password"`
		Role           model.Role `json:"role"`
		PreferredHours *float64   `json:"preferedHours"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Name, email and password are required"})
		return
	}
	s.mu.Lock()
	_, exists := s.passwords[body.Email]
	s.mu.Unlock()
	if exists {
		c.JSON(http.StatusConflict, gin.H{"message": "User already exists"})
		return
	}
	u := s.AddUser(model.User{
		Name:           body.Name,
		Email:          body.Email,
		Role:           body.Role,
		PreferredHours: body.PreferredHours,
	}, body.Password)
	c.JSON(http.StatusCreated, gin.H{"user": u, "message": "User registered successfully"})
}

func (s *Server) listRecords(c *gin.Context) {
	me := current(c)
	from, to := c.Query("startDate"), c.Query("endDate")
	out := []model.Record{}
	for _, r := range s.Records() {
		if r.Owner == nil || r.Owner.ID != me.ID {
			continue
		}
		day := r.Day()
		if (from != "" && day < from) || (to != "" && day > to) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day() > out[j].Day() })
	c.JSON(http.StatusOK, out)
}

func (s *Server) allRecords(c *gin.Context) {
	if !current(c).Role.CanManageAllRecords() {
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
		return
	}
	out := s.Records()
	if out == nil {
		out = []model.Record{}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) exportRecords(c *gin.Context) {
	id := c.Param("userId")
	var b strings.Builder
	b.WriteString("date,description,duration\n")
	for _, r := range s.Records() {
		if r.Owner != nil && r.Owner.ID == id {
			fmt.Fprintf(&b, "%s,%s,%v\n", r.Day(), r.Description, r.Hours)
		}
	}
	c.Header("Content-Disposition", `attachment; filename="records.csv"`)
	c.Data(http.StatusOK, "text/csv", []byte(b.String()))
}

func bindInput(c *gin.Context) (model.RecordInput, bool) {
	var in model.RecordInput
	if err := c.ShouldBindJSON(&in); err != nil || in.Description == "" || in.Date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Description, date and duration are required"})
		return in, false
	}
	return in, true
}

func (s *Server) createRecord(c *gin.Context) {
	in, ok := bindInput(c)
	if !ok {
		return
	}
	r := s.AddRecord(current(c), model.Record{Date: in.Date, Description: in.Description, Hours: in.Hours})
	c.JSON(http.StatusCreated, gin.H{"record": r, "message": "Record created successfully"})
}

func (s *Server) createRecordFor(c *gin.Context) {
	if !current(c).Role.CanManageAllRecords() {
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
		return
	}
	in, ok := bindInput(c)
	if !ok {
		return
	}
	email := c.Param("email")
	var owner model.User
	found := false
	for _, u := range s.Users() {
		if u.Email == email {
			owner, found = u, true
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	r := s.AddRecord(owner, model.Record{Date: in.Date, Description: in.Description, Hours: in.Hours})
	c.JSON(http.StatusCreated, gin.H{"record": r, "message": "Record created successfully"})
}

func (s *Server) updateRecord(c *gin.Context) {
	var patch model.RecordPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.ID != id {
			continue
		}
		if patch.Date != nil {
			r.Date = *patch.Date
		}
		if patch.Description != nil {
			r.Description = *patch.Description
		}
		if patch.Hours != nil {
			r.Hours = *patch.Hours
		}
		s.records[i] = r
		c.JSON(http.StatusOK, gin.H{"updatedRecord": r, "message": "Record updated successfully"})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Record not found"})
}

func (s *Server) deleteRecord(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i:i], s.records[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Record not found"})
}

func (s *Server) listUsers(c *gin.Context) {
	if !current(c).Role.CanManageUsers() {
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
		return
	}
	out := s.Users()
	if out == nil {
		out = []model.User{}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) updateUser(c *gin.Context) {
	var patch model.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.users {
		if u.ID != id {
			continue
		}
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		if patch.Role != nil {
			u.Role = *patch.Role
		}
		if patch.PreferredHours != nil {
			u.PreferredHours = model.Hours(*patch.PreferredHours)
		}
		s.users[i] = u
		c.JSON(http.StatusOK, gin.H{"updatedUser": u, "message": "User updated successfully"})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
}

func (s *Server) deleteUser(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.users {
		if u.ID == id {
			s.users = append(s.users[:i:i], s.users[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
}
