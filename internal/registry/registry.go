package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Camera is one entry of the scraped camera list. The proxy only reads
// ImageURL; the rest is passed through to clients.
type Camera struct {
	ID           string  `json:"id"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Country      string  `json:"country"`
	City         string  `json:"city"`
	Region       string  `json:"region,omitempty"`
	Manufacturer string  `json:"manufacturer,omitempty"`
	ImageURL     string  `json:"image_url"`
	PageURL      string  `json:"page_url,omitempty"`
}

type Registry struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	cameras []Camera
	byID    map[string]int
}

func New(path string, logger *zap.Logger) *Registry {
	return &Registry{
		path:    path,
		logger:  logger,
		cameras: []Camera{},
		byID:    map[string]int{},
	}
}

// CameraID derives a stable identifier from the camera's image URL.
func CameraID(imageURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(imageURL)).String()
}

// Load reads the registry file. A missing file yields an empty registry;
// a malformed one leaves the previous contents in place.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("Camera registry file not found", zap.String("path", r.path))
			r.replace(nil)
			return nil
		}
		return fmt.Errorf("failed to read camera registry: %w", err)
	}

	var raw []Camera
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse camera registry: %w", err)
	}

	cameras := make([]Camera, 0, len(raw))
	skipped := 0
	for _, cam := range raw {
		cam.ImageURL = strings.TrimSpace(cam.ImageURL)
		if cam.ImageURL == "" || cam.ImageURL == "N/A" {
			skipped++
			continue
		}
		cam.ID = CameraID(cam.ImageURL)
		cameras = append(cameras, cam)
	}

	r.replace(cameras)
	r.logger.Info("Loaded camera registry",
		zap.String("path", r.path),
		zap.Int("cameras", len(cameras)),
		zap.Int("skipped", skipped))
	return nil
}

func (r *Registry) replace(cameras []Camera) {
	byID := make(map[string]int, len(cameras))
	for i, cam := range cameras {
		byID[cam.ID] = i
	}
	if cameras == nil {
		cameras = []Camera{}
	}

	r.mu.Lock()
	r.cameras = cameras
	r.byID = byID
	r.mu.Unlock()
}

// GetCameras returns the current list. The slice is shared and must not be
// modified.
func (r *Registry) GetCameras() []Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cameras
}

func (r *Registry) GetCameraByID(id string) *Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return nil
	}
	cam := r.cameras[i]
	return &cam
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cameras)
}
