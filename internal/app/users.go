package app

import (
	"strconv"
	"strings"
)

// User is the user resource returned by the JSON apps.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateUserRequest is the body accepted when creating a user.
type CreateUserRequest struct {
	Name  string `json:"name" form:"name" binding:"required,max=100"`
	Email string `json:"email" form:"email" binding:"required,email"`
}

// SearchQuery is the query string of the search endpoints.
type SearchQuery struct {
	Q    string `form:"q"`
	Page int    `form:"page" binding:"omitempty,min=1"`
}

// SearchResult echoes the query with its result list.
type SearchResult struct {
	Query   string   `json:"query"`
	Page    int      `json:"page"`
	Results []string `json:"results"`
}

// UserMessage acknowledges a write to a user.
type UserMessage struct {
	Message string `json:"message"`
	User    any    `json:"user,omitempty"`
}

// sampleUsers is the fixed list served by the JSON apps. A fresh slice is
// returned on every call.
func sampleUsers() []User {
	return []User{
		{ID: 1, Name: "张三", Email: "zhangsan@example.com"},
		{ID: 2, Name: "李四", Email: "lisi@example.com"},
		{ID: 3, Name: "王五", Email: "wangwu@example.com"},
	}
}

// userByID fabricates the user shown for an arbitrary id.
func userByID(id string) map[string]string {
	return map[string]string{
		"id":    id,
		"name":  "用户" + id,
		"email": "user" + id + "@example.com",
	}
}

func updatedUser(id string) UserMessage {
	return UserMessage{
		Message: "用户 " + id + " 更新成功",
		User: map[string]string{
			"id":    id,
			"name":  "更新后的用户",
			"email": "updated@example.com",
		},
	}
}

func deletedUser(id string) UserMessage {
	return UserMessage{Message: "用户 " + id + " 删除成功"}
}

// search builds the canned search response. An empty query is reported as
// unspecified and the page defaults to 1.
func search(q SearchQuery) SearchResult {
	query := strings.TrimSpace(q.Q)
	if query == "" {
		query = "未指定"
	}

	page := q.Page
	if page == 0 {
		page = 1
	}

	results := make([]string, 0, 3)
	for i := 1; i <= 3; i++ {
		results = append(results, "搜索结果"+strconv.Itoa(i)+" for "+query)
	}

	return SearchResult{Query: query, Page: page, Results: results}
}
