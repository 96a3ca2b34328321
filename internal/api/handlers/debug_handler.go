package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/At4lian/editra/internal/clickup"
	"github.com/At4lian/editra/internal/config"
	"github.com/At4lian/editra/internal/logger"
)

// DebugListInfo describes one list with its custom field metadata.
type DebugListInfo struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	SpaceID    string          `json:"space_id"`
	SpaceName  string          `json:"space_name"`
	FolderID   string          `json:"folder_id,omitempty"`
	FolderName string          `json:"folder_name,omitempty"`
	Fields     []clickup.Field `json:"fields"`
}

// DebugSpaceInfo groups the lists of one space.
type DebugSpaceInfo struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Lists []DebugListInfo `json:"lists"`
}

// DebugOutput is the workspace dump: every list with its field ids, so
// the field UUIDs in the environment can be filled in by hand.
type DebugOutput struct {
	TeamUsedID string           `json:"team_used_id"`
	Teams      []clickup.Team   `json:"teams"`
	Spaces     []DebugSpaceInfo `json:"spaces"`
}

// DebugHandler exposes the workspace discovery dump.
type DebugHandler struct {
	cfg *config.Config
	api clickup.IWorkspaceAPI
	log zerolog.Logger
}

// NewDebugHandler creates a new DebugHandler.
func NewDebugHandler(cfg *config.Config, api clickup.IWorkspaceAPI) *DebugHandler {
	return &DebugHandler{
		cfg: cfg,
		api: api,
		log: logger.WithComponent("debug"),
	}
}

// HandleWorkspaceDump walks teams, spaces, folders and lists and
// returns every list's custom field metadata.
func (h *DebugHandler) HandleWorkspaceDump(c *gin.Context) {
	ctx := c.Request.Context()

	teams, err := h.api.ListTeams(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list teams")
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "upstream api error"})
		return
	}
	if len(teams) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "no teams visible for this token"})
		return
	}

	teamID := teams[0].ID
	if h.cfg.ClickUpTeamID != "" {
		found := false
		for _, t := range teams {
			if t.ID == h.cfg.ClickUpTeamID {
				teamID = t.ID
				found = true
				break
			}
		}
		if !found {
			h.log.Warn().Str("team", h.cfg.ClickUpTeamID).Msg("Configured team id not visible, using first team")
		}
	}

	spaces, err := h.api.ListSpaces(ctx, teamID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list spaces")
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "upstream api error"})
		return
	}

	out := DebugOutput{TeamUsedID: teamID, Teams: teams}
	for _, space := range spaces {
		info := DebugSpaceInfo{ID: space.ID, Name: space.Name}

		lists, err := h.api.ListSpaceLists(ctx, space.ID)
		if err != nil {
			h.log.Error().Err(err).Str("space", space.ID).Msg("Failed to list folderless lists")
			c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "upstream api error"})
			return
		}
		for _, list := range lists {
			li, err := h.describeList(c, space, "", "", list)
			if err != nil {
				return
			}
			info.Lists = append(info.Lists, *li)
		}

		folders, err := h.api.ListFolders(ctx, space.ID)
		if err != nil {
			h.log.Error().Err(err).Str("space", space.ID).Msg("Failed to list folders")
			c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "upstream api error"})
			return
		}
		for _, folder := range folders {
			folderLists, err := h.api.ListFolderLists(ctx, folder.ID)
			if err != nil {
				h.log.Error().Err(err).Str("folder", folder.ID).Msg("Failed to list folder lists")
				c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "upstream api error"})
				return
			}
			for _, list := range folderLists {
				li, err := h.describeList(c, space, folder.ID, folder.Name, list)
				if err != nil {
					return
				}
				info.Lists = append(info.Lists, *li)
			}
		}

		out.Spaces = append(out.Spaces, info)
	}

	c.JSON(http.StatusOK, out)
}

// describeList fetches the field metadata of one list. On failure it
// writes the error response itself and returns a non-nil error so the
// caller stops.
func (h *DebugHandler) describeList(c *gin.Context, space clickup.Space, folderID, folderName string, list clickup.List) (*DebugListInfo, error) {
	fields, err := h.api.ListFields(c.Request.Context(), list.ID)
	if err != nil {
		h.log.Error().Err(err).Str("list", list.ID).Msg("Failed to list fields")
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "upstream api error"})
		return nil, err
	}
	return &DebugListInfo{
		ID:         list.ID,
		Name:       list.Name,
		SpaceID:    space.ID,
		SpaceName:  space.Name,
		FolderID:   folderID,
		FolderName: folderName,
		Fields:     fields,
	}, nil
}
