// Package schema defines the club Dataset and its record types.
//
// # Overview
//
// The Dataset is the single aggregate root of the application: every
// collection (teachers, students, committee, attendance, activities,
// annual plans), the optional Settings record and one scalar version,
// LastUpdated, expressed in milliseconds since the Unix epoch.
//
// The whole Dataset is serialized as one JSON document. The same document
// is stored locally and exchanged with the remote endpoint:
//
//	{
//	  "teachers": [...],
//	  "students": [{"id": "...", "name": "Ayu", "class": "XI IPA 2"}],
//	  "committee": [{"id": "...", "studentId": "...", "position": "Chair"}],
//	  "attendance": [{"id": "...", "date": "2026-01-10", "presents": ["..."]}],
//	  "activities": [...],
//	  "annualPlans": [...],
//	  "settings": {"endpointUrl": "https://...", "autoSync": true},
//	  "lastUpdated": 1768032989000
//	}
//
// # Versioning
//
// LastUpdated is the only conflict resolution signal. There is no
// per-record versioning, so reconciliation happens at Dataset granularity.
//
// # References
//
// CommitteeMember.StudentID and Attendance.Presents hold student IDs as
// non-owning lookup keys. Deleting a student never cascades; consumers
// resolve references with StudentByID and skip the ones that dangle.
package schema
