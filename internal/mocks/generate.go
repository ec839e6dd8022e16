// Package mocks provides gomock implementations of the core ports for service tests.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	registry := mocks.NewMockJobRegistry(ctrl)
//	registry.EXPECT().TryStart(gomock.Any(), gomock.Any()).Return(true, nil)
package mocks

// JobRegistry: TryStart, Update, UpdateProgress, UpdateRunProgress, Touch, Finalize, Get, List, FailIfStale, DeleteIfExpired
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_registry_mock.go github.com/target/repo-analyzer/internal/core JobRegistry

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=process_runner_mock.go github.com/target/repo-analyzer/internal/core ProcessRunner

// RepositoryGateway and the Repository handle it opens.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=repository_gateway_mock.go github.com/target/repo-analyzer/internal/core RepositoryGateway
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=repository_mock.go github.com/target/repo-analyzer/internal/core Repository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cleaner_mock.go github.com/target/repo-analyzer/internal/core Cleaner

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=artifact_store_mock.go github.com/target/repo-analyzer/internal/core ArtifactStore

// KeyRepository: CreateRegistration, SetKey, GetKeys
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=key_repository_mock.go github.com/target/repo-analyzer/internal/core KeyRepository
