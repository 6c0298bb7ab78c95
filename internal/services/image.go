package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"natours_echo/internal/apperror"
)

const jpegQuality = 90

// ImageService resizes uploaded images and stores them as JPEG files under
// <publicDir>/img.
type ImageService struct {
	dir string
	now func() time.Time
}

func NewImageService(publicDir string) *ImageService {
	return &ImageService{dir: filepath.Join(publicDir, "img"), now: time.Now}
}

// SaveUserPhoto stores a 500x500 crop and returns its file name.
func (s *ImageService) SaveUserPhoto(fh *multipart.FileHeader, userID string) (string, error) {
	name := fmt.Sprintf("user-%s-%d.jpeg", userID, s.now().UnixMilli())
	if err := s.save(fh, "users", name, 500, 500); err != nil {
		return "", err
	}
	return name, nil
}

// SaveTourImage stores a 2000x1333 crop and returns its file name. suffix
// distinguishes the cover from the numbered gallery images.
func (s *ImageService) SaveTourImage(fh *multipart.FileHeader, tourID, suffix string) (string, error) {
	name := fmt.Sprintf("tour-%s-%d-%s.jpeg", tourID, s.now().UnixMilli(), suffix)
	if err := s.save(fh, "tours", name, 2000, 1333); err != nil {
		return "", err
	}
	return name, nil
}

func (s *ImageService) save(fh *multipart.FileHeader, sub, name string, width, height int) error {
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image") {
		return apperror.Validation("Not an image! Please upload only images.", nil)
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	return s.resize(f, filepath.Join(s.dir, sub), name, width, height)
}

func (s *ImageService) resize(r io.Reader, dir, name string, width, height int) error {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return apperror.Validation("Not an image! Please upload only images.", nil)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	resized := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
	return imaging.Save(resized, filepath.Join(dir, name), imaging.JPEGQuality(jpegQuality))
}
