package courseStructureController

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"lms/auth"
	"lms/config"
	"lms/database"
	"lms/logger"
	"lms/middleware"
	courseModels "lms/models/course"
	"lms/modulestore"
	"lms/services/blocks"
	"lms/services/structure"
	courseStructureValidator "lms/validators/courseStructure"
)

// RetryAfterSeconds is sent with 503 while a structure is being generated.
const RetryAfterSeconds = 120

var (
	generatorMu sync.Mutex
	generator   *structure.Generator
)

// SetGenerator installs the generator shared with the scheduler.
func SetGenerator(g *structure.Generator) {
	generatorMu.Lock()
	defer generatorMu.Unlock()
	generator = g
}

// Generator returns the installed generator, creating one on first use.
func Generator() *structure.Generator {
	generatorMu.Lock()
	defer generatorMu.Unlock()
	if generator == nil {
		db := database.Database.Db
		generator = structure.NewGenerator(db, modulestore.New(db))
	}
	return generator
}

type CourseRecord struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Category string     `json:"category"`
	Org      string     `json:"org"`
	Run      string     `json:"run"`
	Course   string     `json:"course"`
	URI      string     `json:"uri"`
	ImageURL string     `json:"image_url"`
	Start    *time.Time `json:"start"`
	End      *time.Time `json:"end"`
}

func courseRecord(c *courseModels.Course) CourseRecord {
	return CourseRecord{
		ID:       c.CourseKey,
		Name:     c.DisplayName,
		Category: "course",
		Org:      c.Org,
		Run:      c.Run,
		Course:   c.Number,
		URI:      strings.TrimRight(config.AppConfig.BaseURL, "/") + "/api/course_structure/v0/courses/" + url.PathEscape(c.CourseKey) + "/",
		ImageURL: c.CourseImageURL,
		Start:    c.Start,
		End:      c.End,
	}
}

func canAccessCourse(capability *auth.Capability, c *courseModels.Course) bool {
	return config.AppConfig.Debug || modulestore.CanManageCourse(capability, c)
}

// loadCourse resolves the validated course id and checks access.
func loadCourse(c *fiber.Ctx) (*courseModels.Course, error) {
	courseID, _ := c.Locals("courseID").(string)
	course, err := modulestore.New(database.Database.Db).GetCourse(c.UserContext(), courseID)
	if errors.Is(err, modulestore.ErrCourseNotFound) {
		return nil, middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found!", nil)
	}
	if err != nil {
		logger.Log.Errorw("error loading course", "course_id", courseID, "error", err)
		return nil, middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to load course!", nil)
	}
	if !canAccessCourse(middleware.CapabilityFrom(c), course) {
		return nil, middleware.JsonResponse(c, fiber.StatusForbidden, false, "You do not have permission to access this course!", nil)
	}
	return course, nil
}

func ListCourses(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedCourseList").(*courseStructureValidator.CourseListQuery)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
	}
	ctx := c.UserContext()
	store := modulestore.New(database.Database.Db)
	capability := middleware.CapabilityFrom(c)

	var courses []courseModels.Course
	if len(reqData.CourseIDs) > 0 {
		for _, id := range reqData.CourseIDs {
			if course, err := store.GetCourse(ctx, id); err == nil {
				courses = append(courses, *course)
			}
		}
	} else {
		var err error
		if courses, err = store.GetCourses(ctx, nil); err != nil {
			logger.Log.Errorw("error listing courses", "error", err)
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to list courses!", nil)
		}
	}

	visible := []CourseRecord{}
	seen := map[uint]bool{}
	for i := range courses {
		if seen[courses[i].ID] || !canAccessCourse(capability, &courses[i]) {
			continue
		}
		seen[courses[i].ID] = true
		visible = append(visible, courseRecord(&courses[i]))
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].ID < visible[j].ID })

	count := len(visible)
	numPages := (count + reqData.PageSize - 1) / reqData.PageSize
	if numPages == 0 {
		numPages = 1
	}
	if reqData.Page > numPages {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Invalid page.", nil)
	}
	start := (reqData.Page - 1) * reqData.PageSize
	end := start + reqData.PageSize
	if end > count {
		end = count
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Courses retrieved successfully.", fiber.Map{
		"count":     count,
		"num_pages": numPages,
		"next":      pageURL(c, reqData.Page+1, numPages),
		"previous":  pageURL(c, reqData.Page-1, numPages),
		"results":   visible[start:end],
	})
}

// pageURL links to another page of the current listing, or nil when out of range.
func pageURL(c *fiber.Ctx, page, numPages int) interface{} {
	if page < 1 || page > numPages {
		return nil
	}
	values := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		values.Set(string(k), string(v))
	})
	values.Set("page", fmt.Sprint(page))
	return c.BaseURL() + c.Path() + "?" + values.Encode()
}

func GetCourse(c *fiber.Ctx) error {
	course, err := loadCourse(c)
	if course == nil {
		return err
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course retrieved successfully.", courseRecord(course))
}

func GetCourseStructure(c *fiber.Ctx) error {
	course, err := loadCourse(c)
	if course == nil {
		return err
	}

	s, err := Generator().Get(c.UserContext(), course)
	if errors.Is(err, structure.ErrNotGenerated) {
		Generator().GenerateAsync(course)
		c.Set(fiber.HeaderRetryAfter, fmt.Sprint(RetryAfterSeconds))
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Course structure is being generated. Try again later.", nil)
	}
	if err != nil {
		logger.Log.Errorw("error loading course structure", "course_key", course.CourseKey, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to load course structure!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course structure retrieved successfully.", s)
}

func GetGradingPolicy(c *fiber.Ctx) error {
	course, err := loadCourse(c)
	if course == nil {
		return err
	}
	policy, err := structure.GradingPolicy(course)
	if err != nil {
		logger.Log.Errorw("malformed grading policy", "course_key", course.CourseKey, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to read grading policy!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Grading policy retrieved successfully.", policy)
}

// GetCourseBlocks serves the blocks, navigation and blocks+navigation views.
// Enrolled learners may read them as well as course staff.
func GetCourseBlocks(c *fiber.Ctx) error {
	opts, ok := c.Locals("validatedBlocksOptions").(blocks.Options)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
	}
	ctx := c.UserContext()
	store := modulestore.New(database.Database.Db)
	capability := middleware.CapabilityFrom(c)

	courseID, _ := c.Locals("courseID").(string)
	course, err := store.GetCourse(ctx, courseID)
	if errors.Is(err, modulestore.ErrCourseNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found!", nil)
	}
	if err != nil {
		logger.Log.Errorw("error loading course", "course_id", courseID, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to load course!", nil)
	}

	if !canAccessCourse(capability, course) {
		enrolled, err := store.IsEnrolled(ctx, capability.UserID, course.ID)
		if err != nil {
			logger.Log.Errorw("error checking enrollment", "course_key", course.CourseKey, "error", err)
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to load course!", nil)
		}
		if !enrolled {
			return middleware.JsonResponse(c, fiber.StatusForbidden, false, "You are not enrolled in this course!", nil)
		}
	}

	root, err := store.LoadTree(ctx, course)
	if errors.Is(err, modulestore.ErrNoRootBlock) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course has no content!", nil)
	}
	if err != nil {
		logger.Log.Errorw("error loading course tree", "course_key", course.CourseKey, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to load course content!", nil)
	}

	walker := &blocks.Walker{
		Access: modulestore.CourseAccess{Course: course},
		URLs:   blocks.PathURLs{BaseURL: config.AppConfig.BaseURL},
	}
	result := walker.Walk(capability, course.CourseKey, root, opts)
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course blocks retrieved successfully.", result)
}
