package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/gradeport/internal/model"
	"github.com/pavelanni/gradeport/internal/portal"
)

func examsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exams",
		Short: "List or delete exams",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List exams, newest first",
		RunE:  runListExams,
	}
	addCommonFlags(list)

	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete an exam with its questions and answers",
		RunE:  runDeleteExam,
	}
	addCommonFlags(del)
	del.Flags().String("exam-id", "", "Exam identifier (required)")
	_ = del.MarkFlagRequired("exam-id")

	cmd.AddCommand(list, del)
	return cmd
}

func runListExams(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	a, err := openApp(viperForCmd(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	exams, err := a.svc.ListExams(cmd.Context())
	if err != nil {
		return err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return printJSON(cmd.OutOrStdout(), exams)
}

func runDeleteExam(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	a, err := openApp(v)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.svc.DeleteExam(cmd.Context(), v.GetString("exam-id"))
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import question or answer sheets (CSV)",
	}

	questions := &cobra.Command{
		Use:   "questions",
		Short: "Replace an exam's questions with a question sheet",
		RunE:  runImportQuestions,
	}
	addCommonFlags(questions)
	addImportFlags(questions)
	f := questions.Flags()
	f.String("exam-name", "", "Create a new exam with this name when --exam-id is empty")
	f.String("organizer", "", "Organizer of the new exam")
	f.String("school", "", "School of the new exam")
	f.String("grade", "", "Grade of the new exam")
	f.String("date", "", "Date of the new exam (YYYY-MM-DD)")
	f.String("series", "", "Series of the new exam")

	answers := &cobra.Command{
		Use:   "answers",
		Short: "Load an answer sheet, creating unknown students",
		RunE:  runImportAnswers,
	}
	addCommonFlags(answers)
	addImportFlags(answers)
	_ = answers.MarkFlagRequired("exam-id")

	cmd.AddCommand(questions, answers)
	return cmd
}

func addImportFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("exam-id", "", "Exam identifier")
	f.StringP("file", "f", "-", "Input CSV file (- for stdin)")
	f.Bool("force", false, "Import even if the same file was imported before")
}

func runImportQuestions(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	a, err := openApp(v)
	if err != nil {
		return err
	}
	defer a.Close()

	examID := v.GetString("exam-id")
	if examID == "" {
		exam := model.Exam{
			Name:      v.GetString("exam-name"),
			Organizer: v.GetString("organizer"),
			School:    v.GetString("school"),
			Grade:     v.GetString("grade"),
			Date:      v.GetString("date"),
			Series:    v.GetString("series"),
		}
		if exam.Name == "" {
			return fmt.Errorf("either --exam-id or --exam-name is required")
		}
		if err := a.svc.CreateExam(cmd.Context(), &exam); err != nil {
			return err
		}
		examID = exam.ID
	}

	return runImport(cmd, v, func(r io.Reader) (*portal.ImportResult, error) {
		return a.svc.ImportQuestions(cmd.Context(), examID, r, v.GetBool("force"))
	}, examID)
}

func runImportAnswers(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	a, err := openApp(v)
	if err != nil {
		return err
	}
	defer a.Close()

	examID := v.GetString("exam-id")
	return runImport(cmd, v, func(r io.Reader) (*portal.ImportResult, error) {
		return a.svc.ImportAnswers(cmd.Context(), examID, r, v.GetBool("force"))
	}, examID)
}

func runImport(cmd *cobra.Command, v *viper.Viper, load func(io.Reader) (*portal.ImportResult, error), examID string) error {
	in, closeIn, err := openInput(v.GetString("file"))
	if err != nil {
		return err
	}
	defer closeIn()

	res, err := load(in)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), struct {
		ExamID string `json:"exam_id"`
		*portal.ImportResult
	}{examID, res})
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export questions, answers or results",
	}
	for _, kind := range []string{"questions", "answers", "results"} {
		sub := &cobra.Command{
			Use:   kind,
			Short: "Export the exam's " + kind + " as CSV",
			RunE:  runExport,
		}
		addCommonFlags(sub)
		f := sub.Flags()
		f.String("exam-id", "", "Exam identifier (required)")
		f.StringP("output", "o", "-", "Output file path (- for stdout)")
		if kind == "results" {
			f.String("format", "csv", "Output format (csv, xlsx)")
		}
		_ = sub.MarkFlagRequired("exam-id")
		cmd.AddCommand(sub)
	}
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	a, err := openApp(v)
	if err != nil {
		return err
	}
	defer a.Close()

	w, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	ctx := cmd.Context()
	examID := v.GetString("exam-id")
	switch cmd.Name() {
	case "questions":
		err = a.svc.ExportQuestions(ctx, examID, w)
	case "answers":
		err = a.svc.ExportAnswers(ctx, examID, w)
	default:
		switch v.GetString("format") {
		case "csv":
			err = a.svc.ExportResults(ctx, examID, w)
		case "xlsx":
			err = a.svc.ExportResultsXLSX(ctx, examID, w)
		default:
			return fmt.Errorf("unknown format %q", v.GetString("format"))
		}
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", cmd.Name(), err)
	}
	slog.Info("exported", "kind", cmd.Name(), "exam_id", examID, "output", v.GetString("output"))
	return nil
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print scored and ranked results as JSON",
		RunE:  runReport,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.String("exam-id", "", "Exam identifier (required)")
	f.String("student-id", "", "Only report this student")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	a, err := openApp(v)
	if err != nil {
		return err
	}
	defer a.Close()

	w, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	ctx := cmd.Context()
	examID := v.GetString("exam-id")
	if studentID := v.GetString("student-id"); studentID != "" {
		res, err := a.svc.StudentResult(ctx, examID, studentID, nil)
		if err != nil {
			return err
		}
		return printJSON(w, res)
	}
	results, err := a.svc.ExamResults(ctx, examID, nil)
	if err != nil {
		return err
	}
	return printJSON(w, results)
}

func studentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Find and merge duplicate students",
	}

	duplicates := &cobra.Command{
		Use:   "duplicates",
		Short: "List groups of students that normalize to the same identity",
		RunE:  runDuplicates,
	}
	addCommonFlags(duplicates)

	merge := &cobra.Command{
		Use:   "merge",
		Short: "Merge the source student into the target student",
		RunE:  runMerge,
	}
	addCommonFlags(merge)
	merge.Flags().String("target", "", "Student ID that survives (required)")
	merge.Flags().String("source", "", "Student ID that is merged and deleted (required)")
	_ = merge.MarkFlagRequired("target")
	_ = merge.MarkFlagRequired("source")

	mergeAll := &cobra.Command{
		Use:   "merge-duplicates",
		Short: "Merge every duplicate group and drop students left without answers",
		RunE:  runMergeDuplicates,
	}
	addCommonFlags(mergeAll)

	cmd.AddCommand(duplicates, merge, mergeAll)
	return cmd
}

func runDuplicates(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	a, err := openApp(viperForCmd(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	groups, err := a.svc.DuplicateGroups(cmd.Context())
	if err != nil {
		return err
	}
	if groups == nil {
		groups = [][]model.Student{}
	}
	return printJSON(cmd.OutOrStdout(), groups)
}

func runMerge(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	a, err := openApp(v)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.svc.Merge(cmd.Context(), v.GetString("target"), v.GetString("source"))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}

func runMergeDuplicates(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	a, err := openApp(viperForCmd(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.svc.MergeDuplicates(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func cleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove duplicate and orphaned answers",
		RunE:  runCleanup,
	}
	addCommonFlags(cmd)
	return cmd
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	a, err := openApp(viperForCmd(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.svc.Cleanup(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), summary)
}
