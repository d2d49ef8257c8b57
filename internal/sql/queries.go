package sql

import "embed"

// Migrations holds the schema files applied by db.ApplyMigrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/list_exams.sql
var ListExams string

//go:embed queries/insert_exam.sql
var InsertExam string

//go:embed queries/routine_rules.sql
var RoutineRules string

//go:embed queries/upsert_routine.sql
var UpsertRoutine string

//go:embed queries/copy_routine.sql
var CopyRoutine string

//go:embed queries/list_profiles.sql
var ListProfiles string

//go:embed queries/save_profile.sql
var SaveProfile string

//go:embed queries/set_profile_clinics.sql
var SetProfileClinics string

//go:embed queries/add_override.sql
var AddOverride string

//go:embed queries/list_overrides.sql
var ListOverrides string

//go:embed queries/prune_overrides.sql
var PruneOverrides string

//go:embed queries/start_run.sql
var StartRun string

//go:embed queries/finish_run.sql
var FinishRun string

//go:embed queries/list_runs.sql
var ListRuns string

//go:embed queries/required_tables.sql
var RequiredTables string

//go:embed queries/stats.sql
var Stats string

//go:embed queries/clear_profile_clinics.sql
var ClearProfileClinics string

//go:embed queries/clear_routine_rules.sql
var ClearRoutineRules string

//go:embed queries/count_catalog.sql
var CountCatalog string

//go:embed queries/delete_exams.sql
var DeleteExams string

//go:embed queries/delete_other_clinics.sql
var DeleteOtherClinics string

//go:embed queries/delete_profile.sql
var DeleteProfile string

//go:embed queries/delete_routine.sql
var DeleteRoutine string

//go:embed queries/insert_clinics.sql
var InsertClinics string

//go:embed queries/insert_routine.sql
var InsertRoutine string

//go:embed queries/list_clinics.sql
var ListClinics string

//go:embed queries/list_routines.sql
var ListRoutines string

//go:embed queries/remove_override.sql
var RemoveOverride string

//go:embed queries/routine_id.sql
var RoutineID string
