package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/vitalvas/waypoint/mux"
	"github.com/vitalvas/waypoint/muxhandlers"
	"github.com/vitalvas/waypoint/upload"
	"go.uber.org/zap"
)

// FileInfo describes a stored upload in responses.
type FileInfo struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
	Path         string `json:"path"`
}

func fileInfo(f *upload.File) FileInfo {
	return FileInfo{
		Filename:     f.Filename,
		OriginalName: f.OriginalName,
		Size:         f.Size,
		MimeType:     f.MimeType,
		Path:         f.Path,
	}
}

type uploadError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// buildUploads serves user lookups, JSON creation and file uploads to the
// configured directory.
func buildUploads(d *Deps, r *mux.Router) error {
	uploader, err := upload.New(upload.Config{
		Storage: &upload.DiskStorage{Dir: d.Config.Upload.Dir},
		Limits: upload.Limits{
			FileSize: d.Config.Upload.MaxFileSize,
			Files:    d.Config.Upload.MaxFiles,
		},
	})
	if err != nil {
		return err
	}

	parsers := muxhandlers.BodyParserConfig{Limit: d.Config.BodyLimit}
	r.Use(
		muxhandlers.JSONBodyStage(parsers),
		muxhandlers.URLEncodedBodyStage(parsers),
	)

	r.NotFound = func(c *mux.Context) mux.Result {
		return c.JSON(http.StatusNotFound, uploadError{Error: "找不到请求的端点"})
	}

	r.UseError(uploadErrors)

	r.Get("/user/:id", showUserDetails)
	r.Post("/user", createUserRecord)

	maxFiles := d.Config.Upload.MaxFiles
	if maxFiles <= 0 {
		maxFiles = 5
	}

	r.Post("/upload", uploadSingle).Use(uploader.Single("avatar"))
	r.Post("/upload-multiple", uploadMultiple).Use(uploader.Array("photos", maxFiles))

	r.Get("/hello", htmlPage("<h1>Hello World!</h1><p>欢迎来到 Waypoint 学习第四天!</p>"))

	r.Get("/error", func(c *mux.Context) mux.Result {
		return c.JSON(http.StatusInternalServerError, uploadError{Error: "服务器发生错误!"})
	})

	return nil
}

func showUserDetails(c *mux.Context) mux.Result {
	id := c.Param("id")

	c.Logger().Debug("user lookup",
		zap.String("id", id),
		zap.Any("query", c.QueryValues()),
	)

	user := map[string]string{
		"id":   id,
		"name": "John Doe",
	}

	if c.Query("details") == "true" {
		user["email"] = "john@example.com"
		user["details"] = "完整的用户详细信息"
	}

	return c.JSON(http.StatusOK, user)
}

// createUserRecord stores nothing; it echoes the submitted fields with a
// timestamp id. Submitted fields override the generated id.
func createUserRecord(c *mux.Context) mux.Result {
	user := map[string]any{"id": time.Now().UnixMilli()}

	switch body := c.Body.(type) {
	case nil:
	case map[string]any:
		for k, v := range body {
			user[k] = v
		}
	default:
		return mux.Fail(mux.NewHTTPError(http.StatusBadRequest, "user must be an object"))
	}

	c.Logger().Info("user received", zap.Any("user", user))

	return c.JSON(http.StatusCreated, UserMessage{Message: "用户创建成功", User: user})
}

func uploadSingle(c *mux.Context) mux.Result {
	f := upload.FileFrom(c)
	if f == nil {
		return c.JSON(http.StatusBadRequest, uploadError{Error: "没有上传文件"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "文件上传成功",
		"file":    fileInfo(f),
	})
}

func uploadMultiple(c *mux.Context) mux.Result {
	files := upload.FilesFrom(c)
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, uploadError{Error: "没有上传文件"})
	}

	infos := make([]FileInfo, 0, len(files))
	for _, f := range files {
		infos = append(infos, fileInfo(f))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "文件上传成功",
		"files":   infos,
	})
}

// uploadErrors maps upload limit violations to descriptive 400 responses
// and hides server failures behind a generic 500. Other client errors fall
// through to the default error stage.
func uploadErrors(c *mux.Context, err error) mux.Result {
	var ue *upload.Error
	if errors.As(err, &ue) {
		body := uploadError{Error: "文件上传错误", Message: ue.Error()}

		switch ue.Code {
		case upload.CodeUnexpectedFile:
			body = uploadError{Error: "上传文件数量超过限制", Message: "您上传的文件数量超过了允许的最大数量"}
		case upload.CodeFileSize:
			body = uploadError{Error: "文件大小超过限制", Message: "您上传的文件大小超过了允许的最大大小"}
		}

		return c.JSON(http.StatusBadRequest, body)
	}

	if mux.StatusCode(err) < http.StatusInternalServerError {
		return mux.Next()
	}

	c.Logger().Error("server error", zap.Error(err))

	return c.JSON(http.StatusInternalServerError, uploadError{
		Error:   "服务器内部错误",
		Message: "服务器发生了意外错误",
	})
}
