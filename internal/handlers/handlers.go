package handlers

import (
	"sync"
	"time"

	"image-library/internal/descriptions"
	"image-library/internal/geometry"
	"image-library/internal/paint"
	"image-library/internal/session"
	"image-library/internal/startup"
)

type Handlers struct {
	session          *session.Session
	index            *descriptions.Index
	libraryDir       string
	descriptionsFile string
	container        geometry.Size
	started          time.Time

	canvasMu sync.Mutex
	canvas   *paint.Canvas
}

func New(sess *session.Session, idx *descriptions.Index, config *startup.Config) *Handlers {
	return &Handlers{
		session:          sess,
		index:            idx,
		libraryDir:       config.LibraryDir,
		descriptionsFile: config.DescriptionsFile,
		container:        geometry.Size{Width: config.FitWidth, Height: config.FitHeight},
		started:          time.Now(),
	}
}
