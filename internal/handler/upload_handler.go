package handler

import (
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// maxAvatarEdge 为头像缩放后的最大边长
const maxAvatarEdge = 256

// UploadAvatar 处理头像上传：校验图片、等比缩放到上限边长并保存为 PNG
func (a *API) UploadAvatar(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的图片")
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondError(c, http.StatusBadRequest, "只允许上传图片文件")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取图片失败")
		return
	}
	defer src.Close()

	decoded, _, err := image.Decode(src)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无法识别的图片格式")
		return
	}

	scaled := scaleDownImage(decoded, maxAvatarEdge)

	if err := os.MkdirAll(a.uploadDir, 0o755); err != nil {
		respondError(c, http.StatusInternalServerError, "创建上传目录失败")
		return
	}

	fileName := fmt.Sprintf("avatar-%s.png", uuid.New().String())
	filePath := filepath.Join(a.uploadDir, fileName)

	out, err := os.Create(filePath)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "保存文件失败")
		return
	}
	defer out.Close()

	if err := png.Encode(out, scaled); err != nil {
		respondError(c, http.StatusInternalServerError, "保存文件失败")
		return
	}

	fileURL := strings.TrimRight(a.uploadURL, "/") + "/" + fileName
	if err := a.profiles.SetAvatarURL(userID, fileURL); err != nil {
		respondError(c, http.StatusInternalServerError, "更新头像失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatar_url": fileURL})
}

// scaleDownImage 等比缩放图片，长边不超过 maxEdge；原图更小时原样返回
func scaleDownImage(src image.Image, maxEdge int) image.Image {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxEdge && height <= maxEdge {
		return src
	}

	scale := float64(maxEdge) / float64(width)
	if height > width {
		scale = float64(maxEdge) / float64(height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(float64(width)*scale), int(float64(height)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
