package folders

import (
	"context"
	"strings"

	"github.com/dl-alexandre/gdsync/internal/api"
	"github.com/dl-alexandre/gdsync/internal/logging"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
)

// DefaultMarker is the property every engine-created folder carries
func DefaultMarker() types.MarkerProperty {
	return types.MarkerProperty{
		Key:        utils.MarkerPropertyKey,
		Value:      utils.MarkerPropertyValue,
		Visibility: utils.MarkerPropertyVisibility,
	}
}

// Manager finds and creates marked folders. Only folders carrying the
// marker are ever matched, so user-created folders with the same title are
// invisible to path resolution.
type Manager struct {
	store  api.RemoteStore
	marker types.MarkerProperty
	logger logging.Logger
}

// NewManager creates a new folder manager
func NewManager(store api.RemoteStore, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Manager{
		store:  store,
		marker: DefaultMarker(),
		logger: logger,
	}
}

// Find returns the first marked folder called name under parentID, or nil
// when there is none. Duplicates are not repaired.
func (m *Manager) Find(ctx context.Context, reqCtx *types.RequestContext, name, parentID string) (*types.RemoteObject, error) {
	if strings.TrimSpace(name) == "" {
		return nil, utils.InvalidArgument("name", "folder name must not be blank")
	}
	if strings.TrimSpace(parentID) == "" {
		return nil, utils.InvalidArgument("parentId", "parent folder id must not be blank")
	}

	matches, err := api.ListAll(ctx, m.store, reqCtx, FolderQuery(name, parentID, m.marker))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		m.logger.Debug("Duplicate marked folders, using first",
			logging.F("name", name),
			logging.F("parentId", parentID),
			logging.F("count", len(matches)),
		)
	}
	return matches[0], nil
}

// Create makes a marked folder called name under parentID
func (m *Manager) Create(ctx context.Context, reqCtx *types.RequestContext, name, parentID string) (*types.RemoteObject, error) {
	if strings.TrimSpace(name) == "" {
		return nil, utils.InvalidArgument("name", "folder name must not be blank")
	}
	if strings.TrimSpace(parentID) == "" {
		return nil, utils.InvalidArgument("parentId", "parent folder id must not be blank")
	}

	folder, err := m.store.CreateFolder(ctx, reqCtx, name, parentID, m.marker)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Created folder",
		logging.F("name", name),
		logging.F("parentId", parentID),
		logging.F("folderId", folder.ID),
	)
	return folder, nil
}
