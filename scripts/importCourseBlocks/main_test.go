package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `usage_key,parent_usage_key,position,category,display_name,graded,format,visible_to_staff_only,start,student_view_data
course,,0,course,Demo Course,,,,2015-01-01T00:00:00Z,
chapter,course,0,chapter,Week 1,,,,,
seq,chapter,0,sequential,Homework 1,true,Homework,,,
video,seq,1,video,Intro,,,,,"{""only_on_web"":false,""encoded_videos"":{""mobile_low"":{""url"":""http://v/low""}}}"
,chapter,1,vertical,orphan without key,,,,,
secret,chapter,2,html,Answers,,,true,,
`

func TestParseBlocks(t *testing.T) {
	blocks, skipped, err := parseBlocks(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, blocks, 5)

	assert.Equal(t, "course", blocks[0].Category)
	require.NotNil(t, blocks[0].Start)
	assert.Equal(t, 2015, blocks[0].Start.Year())

	assert.True(t, blocks[2].Graded)
	assert.Equal(t, "Homework", blocks[2].Format)

	assert.Equal(t, 1, blocks[3].Position)
	assert.Contains(t, blocks[3].StudentViewData, "encoded_videos")

	assert.True(t, blocks[4].VisibleToStaffOnly)
}

func TestParseBlocksRejectsBadData(t *testing.T) {
	_, _, err := parseBlocks(strings.NewReader("usage_key,category\n"))
	assert.Error(t, err)

	_, _, err = parseBlocks(strings.NewReader("usage_key,category,start\ncourse,course,yesterday\n"))
	assert.ErrorContains(t, err, "row 2")

	_, _, err = parseBlocks(strings.NewReader("usage_key,category,student_view_data\nv,video,[1]\n"))
	assert.ErrorContains(t, err, "student_view_data")
}
