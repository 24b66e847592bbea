// Command importCourseBlocks loads a course content tree from CSV.
//
//	go run ./scripts/importCourseBlocks <course_key> <blocks.csv> [grading_policy.json]
//
// The CSV header names the block columns: usage_key, parent_usage_key,
// position, category, display_name, graded, format, hide_from_toc,
// has_responsive_ui, visible_to_staff_only, start (RFC 3339) and
// student_view_data (a JSON object). Unknown columns are ignored.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"lms/config"
	"lms/coursekey"
	"lms/database"
	"lms/logger"
	courseModels "lms/models/course"
	"lms/modulestore"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("usage: importCourseBlocks <course_key> <blocks.csv> [grading_policy.json]")
	}

	// Load config and connect to database
	config.LoadConfig()
	if err := logger.Init(config.AppConfig.AppMode); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	database.ConnectDb()

	key, err := coursekey.Parse(os.Args[1])
	if err != nil {
		log.Fatalf("Invalid course key: %v", err)
	}

	file, err := os.Open(os.Args[2])
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	blocks, skipped, err := parseBlocks(file)
	if err != nil {
		log.Fatalf("Failed to read CSV: %v", err)
	}

	course := &courseModels.Course{
		CourseKey: key.String(),
		Org:       key.Org,
		Number:    key.Course,
		Run:       key.Run,
	}
	for _, b := range blocks {
		if b.Category == "course" && b.ParentUsageKey == "" {
			course.DisplayName = b.DisplayName
			course.Start = b.Start
		}
	}

	if len(os.Args) > 3 {
		raw, err := os.ReadFile(os.Args[3])
		if err != nil {
			log.Fatalf("Failed to read grading policy: %v", err)
		}
		var graders []courseModels.Grader
		if err := json.Unmarshal(raw, &graders); err != nil {
			log.Fatalf("Grading policy must be a list of graders: %v", err)
		}
		course.GradingPolicy = datatypes.JSON(raw)
	}

	store := modulestore.New(database.Database.Db)
	if err := store.ImportCourse(context.Background(), course, blocks); err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Printf("=== Import Complete ===")
	log.Printf("Course: %s", course.CourseKey)
	log.Printf("Blocks: %d", len(blocks))
	log.Printf("Skipped: %d", skipped)
}

// parseBlocks reads block rows. Rows without a usage key or category are
// skipped and counted.
func parseBlocks(r io.Reader) ([]courseModels.Block, int, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, 0, err
	}
	if len(records) < 2 {
		return nil, 0, fmt.Errorf("CSV file is empty or has only headers")
	}

	// Map header indices
	headerIndex := make(map[string]int)
	for i, h := range records[0] {
		headerIndex[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var blocks []courseModels.Block
	skipped := 0
	for i, row := range records[1:] {
		block := courseModels.Block{
			UsageKey:           getField(row, headerIndex, "usage_key"),
			ParentUsageKey:     getField(row, headerIndex, "parent_usage_key"),
			Position:           parseInt(getField(row, headerIndex, "position")),
			Category:           getField(row, headerIndex, "category"),
			DisplayName:        getField(row, headerIndex, "display_name"),
			Graded:             parseBool(getField(row, headerIndex, "graded")),
			Format:             getField(row, headerIndex, "format"),
			HideFromTOC:        parseBool(getField(row, headerIndex, "hide_from_toc")),
			HasResponsiveUI:    parseBool(getField(row, headerIndex, "has_responsive_ui")),
			VisibleToStaffOnly: parseBool(getField(row, headerIndex, "visible_to_staff_only")),
		}
		if block.UsageKey == "" || block.Category == "" {
			skipped++
			continue
		}

		if raw := getField(row, headerIndex, "start"); raw != "" {
			start, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, 0, fmt.Errorf("row %d: invalid start %q: %w", i+2, raw, err)
			}
			block.Start = &start
		}
		if raw := getField(row, headerIndex, "student_view_data"); raw != "" {
			var data map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				return nil, 0, fmt.Errorf("row %d: invalid student_view_data: %w", i+2, err)
			}
			block.StudentViewData = datatypes.JSONMap(data)
		}
		blocks = append(blocks, block)
	}
	return blocks, skipped, nil
}

// getField safely gets a field from the row by header name
func getField(row []string, headerIndex map[string]int, field string) string {
	if idx, ok := headerIndex[field]; ok && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	return err == nil && v
}
