// Package homework holds the review-status vocabulary: the records returned
// by the review API, the catalog of known statuses, and the formatter that
// turns a record into the text sent to the student.
package homework
