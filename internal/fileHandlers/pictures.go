package fileHandlers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"guildchat-backend/internal/apperrors"
)

const AvatarFolder = "avatars"

var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var mutex sync.Mutex

var sugar *zap.SugaredLogger
var uploadDir = "./public"
var maxBytes int64 = 5 << 20

// empty when ffmpeg isn't installed, pictures are then stored without conversion
var ffmpegPath string

func Setup(_sugar *zap.SugaredLogger, _uploadDir string, _maxBytes int64) {
	sugar = _sugar
	uploadDir = _uploadDir
	maxBytes = _maxBytes

	var err error
	ffmpegPath, err = exec.LookPath("ffmpeg")
	if err != nil {
		sugar.Warn("ffmpeg was not found, avatars will be stored without conversion")
		ffmpegPath = ""
	}
}

func MaxBytes() int64 {
	return maxBytes
}

// HandleAvatarPicture reads the "picture" form file, converts it to a 256x256 webp when
// possible and stores it under its content hash. It returns the path relative to the
// upload dir, which is what /cdn serves.
func HandleAvatarPicture(r *http.Request) (string, error) {
	// parse formfile
	picFormFile, _, err := r.FormFile("picture")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", apperrors.Validation("No picture was uploaded")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", apperrors.Validation("Picture is too large")
		}
		return "", apperrors.Validation("Couldn't read the uploaded picture")
	}
	defer func() {
		err := picFormFile.Close()
		if err != nil {
			sugar.Error(err)
		}
	}()

	// read one byte more than allowed to detect oversized files
	inputBytes, err := io.ReadAll(io.LimitReader(picFormFile, maxBytes+1))
	if err != nil {
		return "", apperrors.Internal(err)
	}
	if int64(len(inputBytes)) > maxBytes {
		return "", apperrors.Validation("Picture is too large")
	}

	contentType := http.DetectContentType(inputBytes)
	extension, ok := allowedTypes[contentType]
	if !ok {
		return "", apperrors.Validation(fmt.Sprintf("Unsupported picture type: %s", contentType))
	}

	resultBytes := inputBytes
	if ffmpegPath != "" {
		resultBytes, err = convertToWebp(inputBytes)
		if err != nil {
			sugar.Debug(err)
			return "", apperrors.Validation("Couldn't process the uploaded picture")
		}
		extension = ".webp"
	}

	fileName, err := store(resultBytes, extension)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return path.Join(AvatarFolder, fileName), nil
}

func convertToWebp(inputBytes []byte) ([]byte, error) {
	cmd := exec.Command(
		ffmpegPath,
		"-i", "pipe:0",
		"-vf", "crop=min(iw\\,ih):min(iw\\,ih):(iw-min(iw\\,ih))/2:(ih-min(iw\\,ih))/2,scale=256:256",
		"-vframes", "1",
		"-c:v", "libwebp",
		"-quality", "50",
		"-preset", "default",
		"-f", "webp",
		"pipe:1",
	)

	// this will store the converted image result
	var stdout bytes.Buffer
	cmd.Stdin = bytes.NewReader(inputBytes)
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, err
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg produced no output")
	}
	return stdout.Bytes(), nil
}

// store writes the file named after its hash, identical pictures share one file.
func store(data []byte, extension string) (string, error) {
	hash := sha256.Sum256(data)
	fileName := hex.EncodeToString(hash[:]) + extension
	folderPath := filepath.Join(uploadDir, AvatarFolder)
	fullPath := filepath.Join(folderPath, fileName)

	mutex.Lock()
	defer mutex.Unlock()

	// make folders if they don't exist yet
	err := os.MkdirAll(folderPath, 0o755)
	if err != nil {
		return "", err
	}

	// check if avatar with same hash exists already
	_, err = os.Stat(fullPath)
	if os.IsNotExist(err) {
		err = os.WriteFile(fullPath, data, 0o644)
		if err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	sugar.Debugf("Stored avatar %s", fileName)
	return fileName, nil
}
