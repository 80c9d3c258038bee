package http

import (
	"github.com/go-filegate/internal/application/scheduler"
	"github.com/go-filegate/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-filegate/internal/infrastructure/jwt"
	s3infra "github.com/go-filegate/internal/infrastructure/s3"
	"github.com/go-filegate/internal/infrastructure/shortener"
)

// Deps holds all infrastructure dependencies for the router. The
// scheduler is constructed in main because its lifecycle (Start/Stop)
// outlives any single request.
type Deps struct {
	AccessRepo       *dynamo.AccessRepo
	VerificationRepo *dynamo.VerificationRepo
	JobRepo          *dynamo.JobRepo
	ItemRepo         *dynamo.ItemRepo
	S3Store          *s3infra.Store
	Shortener        shortener.ShortLink
	Scheduler        *scheduler.Scheduler
	JWTProvider      *jwtinfra.Provider
}
