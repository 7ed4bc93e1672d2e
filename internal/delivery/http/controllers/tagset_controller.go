package controllers

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"tagset/internal/delivery/http/helpers"
	"tagset/internal/domain"
)

// TagSetController serves tag field values of objects and the allow-lists behind them.
type TagSetController struct {
	Logger  *slog.Logger
	Service domain.TagSetService
}

func NewTagSetController(logger *slog.Logger, svc domain.TagSetService) *TagSetController {
	return &TagSetController{
		Logger:  logger,
		Service: svc,
	}
}

// fail writes the error response for err. Only unexpected errors are logged.
func (c *TagSetController) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := helpers.ErrorStatus(err)
	if status == http.StatusInternalServerError {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	}
	helpers.WriteJSONError(w, status, code, err.Error())
}

// pathValues returns the named path values, writing a 400 and returning false if any is empty.
func pathValues(w http.ResponseWriter, r *http.Request, names ...string) ([]string, bool) {
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = r.PathValue(name)
		if values[i] == "" {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing "+name)
			return nil, false
		}
	}
	return values, true
}

// ListAllowedTagsResponse is the data of GET /fields/{kind}/{field}/tags.
type ListAllowedTagsResponse struct {
	Items      []domain.Tag           `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListAllowedTagsSuccessResponse is the success envelope for GET /fields/{kind}/{field}/tags (200).
type ListAllowedTagsSuccessResponse struct {
	Data  ListAllowedTagsResponse `json:"data"`
	Error *helpers.APIError       `json:"error"`
}

// ListAllowedTags godoc
// @Summary List the allowed tags of a field
// @Tags allow-list
// @Produce json
// @Param kind path string true "Object kind"
// @Param field path string true "Tag field"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListAllowedTagsSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /fields/{kind}/{field}/tags [get]
func (c *TagSetController) ListAllowedTags(w http.ResponseWriter, r *http.Request) {
	p, ok := pathValues(w, r, "kind", "field")
	if !ok {
		return
	}
	params := helpers.ParsePagination(r)
	tags, total, err := c.Service.ListAllowedTags(r.Context(), p[0], p[1], params)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	meta := helpers.NewPaginationMeta(params.Page, params.PageSize, total)
	helpers.WriteJSONSuccess(w, http.StatusOK, ListAllowedTagsResponse{Items: tags, Pagination: meta})
}

// CreateTagRequest is the body of POST /fields/{kind}/{field}/tags.
type CreateTagRequest struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Validate implements Validator.
func (req CreateTagRequest) Validate() []string {
	var errs []string
	switch {
	case req.Code == "":
		errs = append(errs, "code is required")
	case strings.ContainsFunc(req.Code, unicode.IsSpace):
		errs = append(errs, "code must not contain whitespace")
	}
	if strings.TrimSpace(req.Label) == "" {
		errs = append(errs, "label is required")
	}
	return errs
}

// TagSuccessResponse is the success envelope carrying one tag.
type TagSuccessResponse struct {
	Data  *domain.Tag       `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// CreateAllowedTag godoc
// @Summary Add a tag to a field's allow-list
// @Tags allow-list
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Object kind"
// @Param field path string true "Tag field"
// @Param body body CreateTagRequest true "New tag"
// @Success 201 {object} controllers.TagSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (code or label taken)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /fields/{kind}/{field}/tags [post]
func (c *TagSetController) CreateAllowedTag(w http.ResponseWriter, r *http.Request) {
	p, ok := pathValues(w, r, "kind", "field")
	if !ok {
		return
	}
	var req CreateTagRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	tag := &domain.Tag{Code: req.Code, Label: strings.TrimSpace(req.Label), Description: req.Description}
	if err := c.Service.CreateAllowedTag(r.Context(), p[0], p[1], tag); err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, tag)
}

// RelabelTagRequest is the body of PATCH /fields/{kind}/{field}/tags/{code}.
type RelabelTagRequest struct {
	Label string `json:"label"`
}

func (req RelabelTagRequest) Validate() []string {
	if strings.TrimSpace(req.Label) == "" {
		return []string{"label is required"}
	}
	return nil
}

// RelabelAllowedTag godoc
// @Summary Change the label of an allowed tag
// @Tags allow-list
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Object kind"
// @Param field path string true "Tag field"
// @Param code path string true "Tag code"
// @Param body body RelabelTagRequest true "New label"
// @Success 200 {object} helpers.APIResponse "data contains code and label"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (label taken)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /fields/{kind}/{field}/tags/{code} [patch]
func (c *TagSetController) RelabelAllowedTag(w http.ResponseWriter, r *http.Request) {
	p, ok := pathValues(w, r, "kind", "field", "code")
	if !ok {
		return
	}
	var req RelabelTagRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	label := strings.TrimSpace(req.Label)
	if err := c.Service.RelabelAllowedTag(r.Context(), p[0], p[1], p[2], label); err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, domain.CodeLabel{Code: p[2], Label: label})
}

// DeleteAllowedTag godoc
// @Summary Remove a tag from a field's allow-list
// @Description Fails with 409 while any object still carries the tag.
// @Tags allow-list
// @Security BearerAuth
// @Param kind path string true "Object kind"
// @Param field path string true "Tag field"
// @Param code path string true "Tag code"
// @Success 204
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (tag in use)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /fields/{kind}/{field}/tags/{code} [delete]
func (c *TagSetController) DeleteAllowedTag(w http.ResponseWriter, r *http.Request) {
	p, ok := pathValues(w, r, "kind", "field", "code")
	if !ok {
		return
	}
	if err := c.Service.DeleteAllowedTag(r.Context(), p[0], p[1], p[2]); err != nil {
		c.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LookupLabel godoc
// @Summary Resolve a label to its tag code
// @Tags allow-list
// @Produce json
// @Param kind path string true "Object kind"
// @Param field path string true "Tag field"
// @Param label query string true "Tag label"
// @Success 200 {object} helpers.APIResponse "data contains code and label"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 422 {object} helpers.APIResponse "error.code: invalid_value"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /fields/{kind}/{field}/lookup [get]
func (c *TagSetController) LookupLabel(w http.ResponseWriter, r *http.Request) {
	p, ok := pathValues(w, r, "kind", "field")
	if !ok {
		return
	}
	label := r.URL.Query().Get("label")
	if label == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing label")
		return
	}
	code, err := c.Service.ResolveLabel(r.Context(), p[0], p[1], label)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, domain.CodeLabel{Code: code, Label: label})
}

// CodesRequest is a body carrying a list of tag codes.
type CodesRequest struct {
	Codes []string `json:"codes"`
}

func (req CodesRequest) Validate() []string {
	if req.Codes == nil {
		return []string{"codes is required"}
	}
	return nil
}

// CheckTagsResponse is the data of POST /fields/{kind}/{field}/check.
type CheckTagsResponse struct {
	Valid   bool     `json:"valid"`
	Invalid []string `json:"invalid"`
}

// CheckTags godoc
// @Summary Check codes against a field's allow-list
// @Tags allow-list
// @Accept json
// @Produce json
// @Param kind path string true "Object kind"
// @Param field path string true "Tag field"
// @Param body body CodesRequest true "Codes to check"
// @Success 200 {object} helpers.APIResponse "data.invalid lists the rejected codes"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /fields/{kind}/{field}/check [post]
func (c *TagSetController) CheckTags(w http.ResponseWriter, r *http.Request) {
	p, ok := pathValues(w, r, "kind", "field")
	if !ok {
		return
	}
	var req CodesRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	invalid, err := c.Service.CheckTags(r.Context(), p[0], p[1], req.Codes)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, CheckTagsResponse{Valid: len(invalid) == 0, Invalid: invalid})
}

// TagSetViewSuccessResponse is the success envelope for GET /objects/{kind}/{objectID}/tags/{field} (200).
type TagSetViewSuccessResponse struct {
	Data  *domain.TagSetView `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// TagSetChangeSuccessResponse is the success envelope of every edit (200).
type TagSetChangeSuccessResponse struct {
	Data  *domain.TagSetChange `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// GetObjectTags godoc
// @Summary Get the tags of an object field
// @Description Value is sorted by code. text is the space separated form, a single space when empty.
// @Tags tag-sets
// @Produce json
// @Param kind path string true "Object kind"
// @Param objectID path string true "Object ID"
// @Param field path string true "Tag field"
// @Success 200 {object} controllers.TagSetViewSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found (not a tag field)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /objects/{kind}/{objectID}/tags/{field} [get]
func (c *TagSetController) GetObjectTags(w http.ResponseWriter, r *http.Request) {
	p, ok := pathValues(w, r, "kind", "objectID", "field")
	if !ok {
		return
	}
	view, err := c.Service.GetObjectTags(r.Context(), p[0], p[1], p[2])
	if err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, view)
}

// ReplaceObjectTags godoc
// @Summary Replace the tags of an object field
// @Description Removals are applied before additions so swapping tags on a full field succeeds. Only the difference is written.
// @Tags tag-sets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Object kind"
// @Param objectID path string true "Object ID"
// @Param field path string true "Tag field"
// @Param body body CodesRequest true "New value"
// @Success 200 {object} controllers.TagSetChangeSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 422 {object} helpers.APIResponse "error.code: invalid_value or capacity_exceeded"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /objects/{kind}/{objectID}/tags/{field} [put]
func (c *TagSetController) ReplaceObjectTags(w http.ResponseWriter, r *http.Request) {
	p, ok := pathValues(w, r, "kind", "objectID", "field")
	if !ok {
		return
	}
	var req CodesRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	change, err := c.Service.ReplaceObjectTags(r.Context(), p[0], p[1], p[2], req.Codes)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, change)
}

// DeltaRequest is the body of POST /objects/{kind}/{objectID}/tags/{field}/delta.
type DeltaRequest struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

func (req DeltaRequest) Validate() []string {
	if len(req.Added) == 0 && len(req.Removed) == 0 {
		return []string{"added or removed is required"}
	}
	return nil
}

// ApplyObjectDelta godoc
// @Summary Add and remove tags on an object field
// @Description Removed codes are dropped first, then added codes are added. Unknown removals are ignored.
// @Tags tag-sets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Object kind"
// @Param objectID path string true "Object ID"
// @Param field path string true "Tag field"
// @Param body body DeltaRequest true "Codes to add and remove"
// @Success 200 {object} controllers.TagSetChangeSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 422 {object} helpers.APIResponse "error.code: invalid_value or capacity_exceeded"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /objects/{kind}/{objectID}/tags/{field}/delta [post]
func (c *TagSetController) ApplyObjectDelta(w http.ResponseWriter, r *http.Request) {
	p, ok := pathValues(w, r, "kind", "objectID", "field")
	if !ok {
		return
	}
	var req DeltaRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	delta := domain.Delta{Added: req.Added, Removed: req.Removed}
	change, err := c.Service.ApplyObjectDelta(r.Context(), p[0], p[1], p[2], delta)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, change)
}

// MergeRequest is the body of POST /objects/{kind}/{objectID}/tags/{field}/merge.
type MergeRequest struct {
	Base   []string `json:"base"`
	Edited []string `json:"edited"`
}

func (req MergeRequest) Validate() []string {
	var errs []string
	if req.Base == nil {
		errs = append(errs, "base is required")
	}
	if req.Edited == nil {
		errs = append(errs, "edited is required")
	}
	return errs
}

// MergeObjectTags godoc
// @Summary Merge a client edit into the stored tags
// @Description base is the value the client read, edited the value it wants. The difference between them is replayed onto the current stored value so concurrent edits to other codes survive.
// @Tags tag-sets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Object kind"
// @Param objectID path string true "Object ID"
// @Param field path string true "Tag field"
// @Param body body MergeRequest true "Value read and value wanted"
// @Success 200 {object} controllers.TagSetChangeSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 422 {object} helpers.APIResponse "error.code: invalid_value or capacity_exceeded"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /objects/{kind}/{objectID}/tags/{field}/merge [post]
func (c *TagSetController) MergeObjectTags(w http.ResponseWriter, r *http.Request) {
	p, ok := pathValues(w, r, "kind", "objectID", "field")
	if !ok {
		return
	}
	var req MergeRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	change, err := c.Service.MergeObjectTags(r.Context(), p[0], p[1], p[2], req.Base, req.Edited)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, change)
}
