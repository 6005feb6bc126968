package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/recipebook/apiserver/internal/services"
	"github.com/recipebook/apiserver/internal/storage"
	"github.com/recipebook/apiserver/internal/store"
	"github.com/recipebook/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	maxImageBytes      = 8 << 20

	formFieldName       = "name"
	formFieldPrepTime   = "preparationTime"
	formFieldDifficulty = "difficulty"
	formFieldIsPrivate  = "isPrivate"
	formFieldCategories = "categories"
	formFieldImage      = "image"
)

var allowedImageExts = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
}

// ImageFile represents an uploaded recipe image.
type ImageFile struct {
	Filename string
	Data     []byte
}

// RecipeHandler provides HTTP handlers for recipes.
type RecipeHandler struct {
	recipeService *services.RecipeService
	userService   *services.UserService
	images        *storage.Storage
}

// NewRecipeHandler constructs a handler with the provided dependencies.
// images may be nil when no storage backend is configured.
func NewRecipeHandler(recipeService *services.RecipeService, userService *services.UserService, images *storage.Storage) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
		userService:   userService,
		images:        images,
	}
}

// RecipeRouter registers recipe routes on the given router.
func RecipeRouter(
	r chi.Router,
	recipeService *services.RecipeService,
	userService *services.UserService,
	images *storage.Storage,
	requireAuth func(http.Handler) http.Handler,
	optionalAuth func(http.Handler) http.Handler,
) {
	handler := NewRecipeHandler(recipeService, userService, images)

	r.With(optionalAuth).Get("/", handler.ListRecipes)
	r.With(optionalAuth).Get("/byUser/{userID}", handler.ListRecipesByUser)
	r.With(requireAuth, RequireRecipeMutator).Post("/", handler.CreateRecipe)
	r.Route("/{recipeID}", func(r chi.Router) {
		r.With(optionalAuth).Get("/", handler.GetRecipe)
		r.With(requireAuth, RequireRecipeMutator).Put("/", handler.UpdateRecipe)
		r.With(requireAuth, RequireRecipeMutator).Delete("/", handler.DeleteRecipe)
	})
}

func (h *RecipeHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	recipes, err := h.recipeService.List(r.Context(), callerID(r.Context()), search, page, perPage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list recipes")
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (h *RecipeHandler) ListRecipesByUser(w http.ResponseWriter, r *http.Request) {
	ownerID, err := parseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	page, perPage := parsePagination(r)

	recipes, err := h.recipeService.ListByUser(r.Context(), callerID(r.Context()), ownerID, page, perPage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list recipes")
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (h *RecipeHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "recipeID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recipe id")
		return
	}

	recipe, err := h.recipeService.Get(r.Context(), callerID(r.Context()), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "recipe not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch recipe")
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (h *RecipeHandler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, err := parseRecipeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner, err := h.userService.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	imageKey, err := h.storeImage(r, req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recipe := types.Recipe{
		Name:            req.Name,
		PreparationTime: req.PreparationTime,
		Difficulty:      req.Difficulty,
		IsPrivate:       req.IsPrivate,
		ImageKey:        imageKey,
		Owner:           types.Owner{ID: owner.ID, Name: owner.Username},
	}

	created, err := h.recipeService.Create(r.Context(), recipe, req.CategoryNames)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create recipe")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *RecipeHandler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "recipeID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recipe id")
		return
	}

	req, err := parseRecipeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Updates reference categories by id, not by name.
	categoryIDs, err := parseCategoryIDs(req.CategoryNames)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	imageKey, err := h.storeImage(r, req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recipe := types.Recipe{
		Name:            req.Name,
		PreparationTime: req.PreparationTime,
		Difficulty:      req.Difficulty,
		IsPrivate:       req.IsPrivate,
		ImageKey:        imageKey,
	}

	updated, err := h.recipeService.Update(r.Context(), id, recipe, categoryIDs)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "recipe not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update recipe")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *RecipeHandler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "recipeID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recipe id")
		return
	}

	if err := h.recipeService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "recipe not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete recipe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// storeImage uploads the image to object storage and returns its key.
// Returns an empty key when no image was provided.
func (h *RecipeHandler) storeImage(r *http.Request, image ImageFile) (string, error) {
	if image.Data == nil {
		return "", nil
	}
	if h.images == nil {
		return "", errors.New("image storage is not configured")
	}

	ext := strings.ToLower(filepath.Ext(image.Filename))
	key := uuid.NewString() + ext
	contentType := mime.TypeByExtension(ext)
	if err := h.images.Put(r.Context(), key, bytes.NewReader(image.Data), int64(len(image.Data)), contentType); err != nil {
		return "", errors.New("failed to store image")
	}
	return key, nil
}

// RecipeUpsertRequest represents the parsed multipart form payload.
// CategoryNames holds raw category values: names on create, ids on
// update.
type RecipeUpsertRequest struct {
	Name            string
	PreparationTime int
	Difficulty      string
	IsPrivate       bool
	CategoryNames   []string
	Image           ImageFile
}

// parsePagination reads page and perPage query parameters. Missing,
// malformed, or non-positive values fall back to the defaults.
func parsePagination(r *http.Request) (page, perPage int) {
	page = 1
	perPage = 10

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("perPage")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			perPage = parsed
		}
	}

	return page, perPage
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func parseCategoryIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := parseID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseRecipeForm(r *http.Request) (RecipeUpsertRequest, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return RecipeUpsertRequest{}, errors.New("invalid multipart form")
	}

	name := strings.TrimSpace(r.FormValue(formFieldName))
	if name == "" {
		return RecipeUpsertRequest{}, errors.New("name is required")
	}

	prepTime, err := strconv.Atoi(strings.TrimSpace(r.FormValue(formFieldPrepTime)))
	if err != nil || prepTime < 1 {
		return RecipeUpsertRequest{}, errors.New("preparationTime must be a positive number")
	}

	difficulty := strings.TrimSpace(r.FormValue(formFieldDifficulty))
	if !types.ValidDifficulty(difficulty) {
		return RecipeUpsertRequest{}, errors.New("difficulty must be easy, medium, or hard")
	}

	isPrivate := false
	if raw := strings.TrimSpace(r.FormValue(formFieldIsPrivate)); raw != "" {
		isPrivate, err = strconv.ParseBool(raw)
		if err != nil {
			return RecipeUpsertRequest{}, errors.New("invalid isPrivate")
		}
	}

	categories := parseCategoryValues(r.Form[formFieldCategories])

	image, err := parseImageFile(r.MultipartForm)
	if err != nil {
		return RecipeUpsertRequest{}, err
	}

	return RecipeUpsertRequest{
		Name:            name,
		PreparationTime: prepTime,
		Difficulty:      difficulty,
		IsPrivate:       isPrivate,
		CategoryNames:   categories,
		Image:           image,
	}, nil
}

// parseCategoryValues accepts either repeated form fields or a single
// comma-separated field.
func parseCategoryValues(raw []string) []string {
	values := make([]string, 0, len(raw))
	for _, field := range raw {
		for _, part := range strings.Split(field, ",") {
			if value := strings.TrimSpace(part); value != "" {
				values = append(values, value)
			}
		}
	}
	return values
}

func parseImageFile(form *multipart.Form) (ImageFile, error) {
	if form == nil {
		return ImageFile{}, nil
	}

	files := form.File[formFieldImage]
	if len(files) == 0 {
		return ImageFile{}, nil
	}
	if len(files) > 1 {
		return ImageFile{}, errors.New("only one image is allowed")
	}

	fileHeader := files[0]
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedImageExts[ext] {
		return ImageFile{}, errors.New("images only (jpeg, jpg, png, gif)")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return ImageFile{}, fmt.Errorf("failed to read image: %w", err)
	}

	data, err := readFileLimited(file, maxImageBytes)
	_ = file.Close()
	if err != nil {
		return ImageFile{}, err
	}

	return ImageFile{
		Filename: fileHeader.Filename,
		Data:     data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
