package courseStructureValidator

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"lms/middleware"
	"lms/services/blocks"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type CourseListQuery struct {
	CourseIDs []string
	Page      int
	PageSize  int
}

// CourseList validates paging and the optional course_id list.
func CourseList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := &CourseListQuery{
			Page:     c.QueryInt("page", 1),
			PageSize: c.QueryInt("page_size", DefaultPageSize),
		}

		errors := make(map[string]string)
		if reqData.Page < 1 {
			errors["page"] = "Page must be greater than 0!"
		}
		if reqData.PageSize < 1 || reqData.PageSize > MaxPageSize {
			errors["page_size"] = "Page size must be between 1 and 100!"
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		for _, id := range strings.Split(c.Query("course_id"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				reqData.CourseIDs = append(reqData.CourseIDs, id)
			}
		}

		c.Locals("validatedCourseList", reqData)
		return c.Next()
	}
}

// CourseID unescapes the :course_id path parameter.
func CourseID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, err := url.PathUnescape(c.Params("course_id"))
		if err != nil || strings.TrimSpace(courseID) == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course id!", nil)
		}
		c.Locals("courseID", courseID)
		return c.Next()
	}
}

// BlocksQuery parses the walker options and the requested view.
func BlocksQuery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		opts, err := blocks.ParseOptions(
			optionalQuery(c, "fields"),
			optionalQuery(c, "block_count"),
			optionalQuery(c, "block_json"),
			optionalQuery(c, "navigation_depth"),
		)
		if err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
		}

		view, _ := url.PathUnescape(c.Params("view"))
		switch view {
		case "blocks":
			opts.ReturnBlocks, opts.ReturnNavigation = true, false
		case "navigation":
			opts.ReturnBlocks, opts.ReturnNavigation = false, true
		case "blocks+navigation":
			opts.ReturnBlocks, opts.ReturnNavigation = true, true
		default:
			return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Not found.", nil)
		}

		c.Locals("validatedBlocksOptions", opts)
		return c.Next()
	}
}

// optionalQuery distinguishes an absent parameter from an empty one.
func optionalQuery(c *fiber.Ctx, key string) *string {
	args := c.Context().QueryArgs()
	if !args.Has(key) {
		return nil
	}
	v := string(args.Peek(key))
	return &v
}
