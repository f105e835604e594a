package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jacksonlee411/community-portal/internal/routing"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/ports"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
	"github.com/jacksonlee411/community-portal/modules/profile/presentation/render"
	"github.com/jacksonlee411/community-portal/modules/profile/services"
	"github.com/jacksonlee411/community-portal/pkg/dict"
	"github.com/jacksonlee411/community-portal/pkg/httperr"
	"github.com/jacksonlee411/community-portal/pkg/uuidv7"
	"go.uber.org/zap"
)

// HeaderMemberID carries the authenticated caller's profile id, set by the
// upstream gateway.
const HeaderMemberID = "X-Member-ID"

const (
	maxJSONBytes          = 64 << 10
	defaultMaxAvatarBytes = 5 << 20
	defaultSearchLimit    = 20
)

type CallerGetter func(r *http.Request) string

func CallerFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderMemberID))
}

type ProfileController struct {
	Service  *services.ProfileService
	Sessions *SessionRegistry
	Caller   CallerGetter
	Logger   *zap.Logger
	// MaxAvatarBytes caps avatar uploads; 0 means 5 MiB.
	MaxAvatarBytes int64
}

func NewProfileController(svc *services.ProfileService, logger *zap.Logger) *ProfileController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileController{
		Service:  svc,
		Sessions: NewSessionRegistry(svc),
		Caller:   CallerFromHeader,
		Logger:   logger,
	}
}

type fieldView struct {
	Key         string        `json:"key"`
	Label       string        `json:"label"`
	Kind        types.Kind    `json:"kind"`
	Options     []dict.Option `json:"options,omitempty"`
	FixedLength int           `json:"fixed_length,omitempty"`
	PolicyKey   string        `json:"policy_key,omitempty"`
}

type sectionView struct {
	ID     types.Section `json:"id"`
	Title  string        `json:"title"`
	Fields []fieldView   `json:"fields"`
}

type policyView struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Governs []string `json:"governs"`
}

type sessionView struct {
	ProfileID string       `json:"profile_id"`
	SessionID string       `json:"session_id,omitempty"`
	State     string       `json:"state"`
	Dirty     bool         `json:"dirty"`
	Form      *render.Node `json:"form,omitempty"`
	View      *render.Node `json:"view,omitempty"`
	AvatarRef string       `json:"avatar_ref,omitempty"`
}

type draftUpdateRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (c *ProfileController) HandleFields(w http.ResponseWriter, r *http.Request) {
	reg := c.Service.Registry()
	sections := make([]sectionView, 0, len(reg.Sections()))
	for _, s := range reg.Sections() {
		sv := sectionView{ID: s.ID, Title: s.Title, Fields: []fieldView{}}
		for _, f := range reg.FieldsOf(s.ID) {
			sv.Fields = append(sv.Fields, fieldView{
				Key:         f.Key,
				Label:       f.Label,
				Kind:        f.Kind,
				Options:     f.Options,
				FixedLength: f.FixedLength,
				PolicyKey:   f.PolicyKey,
			})
		}
		sections = append(sections, sv)
	}
	policies := make([]policyView, 0, len(reg.Policies()))
	for _, p := range reg.Policies() {
		governs := p.Governs
		if governs == nil {
			governs = []string{}
		}
		policies = append(policies, policyView{Key: p.Key, Label: p.Label, Governs: governs})
	}
	routing.WriteJSON(w, http.StatusOK, map[string]any{
		"sections": sections,
		"policies": policies,
	})
}

// HandleProfile renders the display tree. The owner sees every field; other
// viewers see what the stored policy exposes.
func (c *ProfileController) HandleProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := c.profileID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	record, found, err := c.Service.OpenRecord(ctx, profileID)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	policy := c.Service.Policies().RevealAll()
	if c.Caller(r) != profileID {
		policy, err = c.Service.LoadPolicy(ctx, profileID)
		if err != nil {
			c.fail(w, r, err)
			return
		}
	}
	view, err := render.RenderProfile(c.Service.Registry(), record, policy, render.ModeDisplay)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, map[string]any{
		"profile_id": profileID,
		"found":      found,
		"view":       view,
	})
}

func (c *ProfileController) HandleStartEdit(w http.ResponseWriter, r *http.Request) {
	profileID, ok := c.profileID(w, r)
	if !ok {
		return
	}
	var out sessionView
	err := c.Sessions.Do(r.Context(), profileID, func(sess *services.EditSession) error {
		sess.StartEdit()
		var err error
		out, err = c.sessionView(sess)
		return err
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, out)
}

func (c *ProfileController) HandleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	profileID, ok := c.profileID(w, r)
	if !ok {
		return
	}
	var req draftUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		c.fail(w, r, err)
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		c.fail(w, r, httperr.NewBadRequest("key is required"))
		return
	}
	var raw any
	if len(req.Value) > 0 {
		if err := json.Unmarshal(req.Value, &raw); err != nil {
			c.fail(w, r, httperr.NewBadRequest("invalid value"))
			return
		}
	}

	var out sessionView
	err := c.Sessions.Do(r.Context(), profileID, func(sess *services.EditSession) error {
		if sess.State() != services.StateEditing {
			return types.ErrNotEditing
		}
		v, err := c.Service.Records().Decode(req.Key, raw)
		if err != nil {
			return err
		}
		if err := sess.UpdateDraft(req.Key, v); err != nil {
			return err
		}
		out, err = c.sessionView(sess)
		return err
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, out)
}

func (c *ProfileController) HandleCommit(w http.ResponseWriter, r *http.Request) {
	profileID, ok := c.profileID(w, r)
	if !ok {
		return
	}
	var out sessionView
	err := c.Sessions.Do(r.Context(), profileID, func(sess *services.EditSession) error {
		if err := sess.Commit(r.Context()); err != nil {
			return err
		}
		var err error
		out, err = c.sessionView(sess)
		return err
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, out)
}

func (c *ProfileController) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	profileID, ok := c.profileID(w, r)
	if !ok {
		return
	}
	var out sessionView
	err := c.Sessions.Do(r.Context(), profileID, func(sess *services.EditSession) error {
		sess.Discard()
		var err error
		out, err = c.sessionView(sess)
		return err
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, out)
}

func (c *ProfileController) HandlePrivacy(w http.ResponseWriter, r *http.Request) {
	profileID, ok := c.profileID(w, r)
	if !ok {
		return
	}
	policy, err := c.Service.LoadPolicy(r.Context(), profileID)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, map[string]any{
		"profile_id": profileID,
		"policy":     c.Service.Policies().ToPersistable(policy),
	})
}

func (c *ProfileController) HandleTogglePrivacy(w http.ResponseWriter, r *http.Request) {
	profileID, ok := c.profileID(w, r)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.PathValue("key"))
	var policy types.Policy
	err := c.Sessions.Exclusive(profileID, func() error {
		var err error
		policy, err = c.Service.TogglePolicy(r.Context(), profileID, key)
		return err
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, map[string]any{
		"profile_id": profileID,
		"key":        key,
		"enabled":    policy.Enabled(key),
		"policy":     c.Service.Policies().ToPersistable(policy),
	})
}

// HandleAvatar stores the request body as the avatar and records the
// reference in the active draft.
func (c *ProfileController) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	profileID, ok := c.profileID(w, r)
	if !ok {
		return
	}
	limit := c.MaxAvatarBytes
	if limit <= 0 {
		limit = defaultMaxAvatarBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		if _, tooLarge := errors.AsType[*http.MaxBytesError](err); tooLarge {
			writeError(w, r, http.StatusRequestEntityTooLarge, "avatar_too_large", "avatar too large")
			return
		}
		c.fail(w, r, httperr.NewBadRequest("unreadable body"))
		return
	}
	if len(body) == 0 {
		c.fail(w, r, httperr.NewBadRequest("avatar body is empty"))
		return
	}

	var out sessionView
	err = c.Sessions.Do(r.Context(), profileID, func(sess *services.EditSession) error {
		ref, err := c.Service.UploadAvatar(r.Context(), sess, r.Header.Get("Content-Type"), bytes.NewReader(body))
		if err != nil {
			return err
		}
		out, err = c.sessionView(sess)
		out.AvatarRef = ref
		return err
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, out)
}

func (c *ProfileController) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := defaultSearchLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.fail(w, r, httperr.NewBadRequest("invalid limit"))
			return
		}
		limit = n
	}
	cards, available, err := c.Service.SearchMembers(r.Context(), q, limit)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if cards == nil {
		cards = []ports.MemberCard{}
	}
	routing.WriteJSON(w, http.StatusOK, map[string]any{
		"query":     q,
		"available": available,
		"members":   cards,
	})
}

func (c *ProfileController) profileID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if !uuidv7.IsCanonical(id) {
		writeError(w, r, http.StatusBadRequest, "invalid_profile_id", "invalid profile id")
		return "", false
	}
	return id, true
}

// sessionView renders the draft while editing and the owner's display of the
// committed record otherwise.
func (c *ProfileController) sessionView(sess *services.EditSession) (sessionView, error) {
	out := sessionView{
		ProfileID: sess.ProfileID(),
		SessionID: sess.ID(),
		State:     string(sess.State()),
		Dirty:     sess.Dirty(),
	}
	reg := c.Service.Registry()
	if draft, ok := sess.Draft(); ok {
		form, err := render.RenderProfile(reg, draft, types.Policy{}, render.ModeEdit)
		if err != nil {
			return sessionView{}, err
		}
		out.Form = &form
		return out, nil
	}
	view, err := render.RenderProfile(reg, sess.Committed(), c.Service.Policies().RevealAll(), render.ModeDisplay)
	if err != nil {
		return sessionView{}, err
	}
	out.View = &view
	return out, nil
}

func (c *ProfileController) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		c.Logger.Error("profile request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
		message = http.StatusText(status)
	}
	writeError(w, r, status, code, message)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return httperr.NewBadRequestf("bad json: %v", err)
	}
	return nil
}
