package tools

import "github.com/tjfontaine/robin-backend/internal/domain"

// Tool names.
const (
	CreateFile        = "create_file"
	UpdateFileContent = "update_file_content"
	DeleteFile        = "delete_file"
	ReadFile          = "read_file"
	Search            = "search"

	CanvasCreateFile     = "canvas_create_file"
	CanvasUpdateFile     = "canvas_update_file_content"
	CanvasDeleteFile     = "canvas_delete_file"
	CanvasReadFile       = "canvas_read_file"
	CanvasSearch         = "canvas_search"
	CanvasReadFileByID   = "canvas_read_file_by_id"
	ArtifactRead         = "artifact_read"
	ProjectCardPreview   = "project_card_preview"
	TodoListCreate       = "todo_list_create"
	TodoListCheck        = "todo_list_check"
	CreateFromTemplate   = "create_file_from_template"
	ImplementFeatureTodo = "implement_feature_and_update_todo"
	AnalyzeDocument      = "analyze_document"
	GenerateImage        = "generate_image"
	EnhanceImage         = "enhance_image"

	LintCheck   = "lint_check"
	AnalyzeCode = "analyze_code"
)

// Toolsets offered per mode. Ask is read-only.
var (
	AskToolset = Toolset{Name: "ask", Tools: []string{ReadFile, Search, LintCheck, AnalyzeCode}}

	BuildToolset = Toolset{Name: "build", Tools: []string{
		CreateFile, UpdateFileContent, DeleteFile, ReadFile, Search, LintCheck, AnalyzeCode,
	}}

	PlaygroundToolset = Toolset{Name: "playground", Tools: []string{
		CanvasCreateFile, CanvasUpdateFile, CanvasDeleteFile, CanvasReadFile, CanvasSearch,
		CanvasReadFileByID, ArtifactRead,
		ProjectCardPreview, TodoListCreate, TodoListCheck,
		CreateFromTemplate, ImplementFeatureTodo,
		AnalyzeDocument, GenerateImage, EnhanceImage,
		LintCheck, AnalyzeCode,
	}}
)

// Toolsets lists every mode's toolset.
func Toolsets() []Toolset {
	return []Toolset{AskToolset, BuildToolset, PlaygroundToolset}
}

func str(desc string) *domain.Schema {
	return &domain.Schema{Type: domain.TypeString, Description: desc}
}

func num(desc string) *domain.Schema {
	return &domain.Schema{Type: domain.TypeNumber, Description: desc}
}

func boolean(desc string) *domain.Schema {
	return &domain.Schema{Type: domain.TypeBoolean, Description: desc}
}

func array(desc string, items *domain.Schema) *domain.Schema {
	return &domain.Schema{Type: domain.TypeArray, Description: desc, Items: items}
}

func object(props map[string]*domain.Schema, required ...string) *domain.Schema {
	return &domain.Schema{Type: domain.TypeObject, Properties: props, Required: required}
}

func decl(name, desc string, params *domain.Schema) domain.ToolDeclaration {
	return domain.ToolDeclaration{Name: name, Description: desc, Parameters: params}
}

// Declarations returns the full tool catalog.
func Declarations() []domain.ToolDeclaration {
	return []domain.ToolDeclaration{
		decl(CreateFile, "Creates a new file with a specified path and initial content. Use this to create new project files.",
			object(map[string]*domain.Schema{
				"path":    str("The full, unique path of the file to create, e.g., 'lib/main.dart' or 'src/components/button.tsx'."),
				"content": str("The initial content of the file. Can be empty."),
			}, "path", "content")),
		decl(UpdateFileContent, "Updates the entire content of an existing file, identified by its unique path.",
			object(map[string]*domain.Schema{
				"path":        str("The unique path of the file to be updated."),
				"new_content": str("The new, complete content that will overwrite the existing file content."),
			}, "path", "new_content")),
		decl(DeleteFile, "Permanently deletes a file from the project, identified by its unique path.",
			object(map[string]*domain.Schema{
				"path": str("The unique path of the file to be deleted."),
			}, "path")),
		decl(ReadFile, "Reads and returns the content of a file in the current project by its path.",
			object(map[string]*domain.Schema{
				"path":      str("The unique path of the file to read."),
				"max_bytes": num("Optional maximum number of bytes to read for very large files. If omitted, returns full file."),
			}, "path")),
		decl(Search, "Search the project files for lines containing a query (case-insensitive). Returns files and matching line numbers.",
			object(map[string]*domain.Schema{
				"query":                str("The substring to search for (no regex)."),
				"max_results_per_file": num("Optional cap for matches per file (default 20, max 200)."),
			}, "query")),

		decl(CanvasCreateFile, "Create the canvas file for the current Playground chat. A chat holds a single canvas file; if one exists, update it instead.",
			object(map[string]*domain.Schema{
				"path":        str("Path of the canvas file to create (e.g., 'index.html' or 'component.jsx')."),
				"content":     str("Initial content of the file."),
				"description": str("Optional short description of what the file contains."),
				"file_type":   str("Optional file type, e.g. 'html', 'react', 'markdown'."),
			}, "path", "content")),
		decl(CanvasUpdateFile, "Update the entire content of an existing canvas file. The first change in a turn creates a new version.",
			object(map[string]*domain.Schema{
				"path":        str("Path of the canvas file to update."),
				"new_content": str("New content to overwrite."),
				"new_version": boolean("Force a new version even if this turn already created one."),
			}, "path", "new_content")),
		decl(CanvasDeleteFile, "Delete a canvas file from the current chat.",
			object(map[string]*domain.Schema{
				"path": str("Path of the canvas file to delete."),
			}, "path")),
		decl(CanvasReadFile, "Read a canvas file's content by path.",
			object(map[string]*domain.Schema{
				"path":      str("Path of the canvas file to read."),
				"max_bytes": num("Optional max bytes to read for large files."),
			}, "path")),
		decl(CanvasSearch, "Search within all canvas files of the current chat for a query.",
			object(map[string]*domain.Schema{
				"query":                str("Substring to search for (case-insensitive)."),
				"max_results_per_file": num("Optional cap per file (default 20, max 200)."),
			}, "query")),
		decl(CanvasReadFileByID, "Read a canvas file's content using its id.",
			object(map[string]*domain.Schema{
				"id":        str("Id of the canvas file."),
				"max_bytes": num("Optional max bytes to read for large files."),
			}, "id")),
		decl(ArtifactRead, "Read a playground artifact's metadata and JSON data using its id.",
			object(map[string]*domain.Schema{
				"id": str("Id of the artifact."),
			}, "id")),
		decl(ProjectCardPreview, "Create a JSON card describing a simple, web-first project proposal with name, summary, stack, key_features, and whether it can be implemented as a single-file canvas component.",
			object(map[string]*domain.Schema{
				"name":                    str("Short project name."),
				"summary":                 str("One-paragraph description of the project. Assume a web target (React or HTML/CSS/JS) unless the user requested otherwise."),
				"stack":                   array("Suggested technologies (e.g., React, HTML/CSS/JS).", str("")),
				"key_features":            array("List of 3-7 headline features.", str("")),
				"can_implement_in_canvas": boolean("True if the project can be implemented entirely in a single JS/HTML file for canvas preview."),
			}, "name", "summary")),
		decl(TodoListCreate, "Create a structured todo list from a user request.",
			object(map[string]*domain.Schema{
				"title": str("Title of the todo list."),
				"tasks": array("Tasks with id, title and done flag.", object(map[string]*domain.Schema{
					"id":    str(""),
					"title": str(""),
					"done":  boolean(""),
					"notes": str(""),
				})),
			}, "title")),
		decl(TodoListCheck, "Mark tasks of a stored todo list artifact as completed.",
			object(map[string]*domain.Schema{
				"artifact_id":        str("Id of the todo list artifact."),
				"completed_task_ids": array("Task ids to mark as done.", str("")),
				"context":            str("Optional context or recent changes to consider."),
			}, "artifact_id")),
		decl(CreateFromTemplate, "Create the canvas file from a template stored as an artifact, replacing {{key}} placeholders.",
			object(map[string]*domain.Schema{
				"artifact_id":   str("Id of the template artifact. Its data must contain a 'template' string."),
				"path":          str("Destination canvas file path to create (e.g., 'index.html')."),
				"substitutions": &domain.Schema{Type: domain.TypeObject, Description: "Optional key-value pairs to replace in the template (e.g., {{title}})."},
			}, "artifact_id", "path")),
		decl(ImplementFeatureTodo, "Update a canvas file's content and then mark the corresponding task as completed in a stored todo list artifact.",
			object(map[string]*domain.Schema{
				"artifact_id": str("Id of the todo list artifact."),
				"task_id":     str("Id of the task to mark as done."),
				"path":        str("Canvas file path to update."),
				"new_content": str("New content to write into the canvas file."),
				"context":     str("Optional notes about the implementation."),
			}, "artifact_id", "task_id", "path", "new_content")),
		decl(AnalyzeDocument, "Analyze user-provided documents (PDF, images, text). Reference attachments by file name or URL exactly as listed; with a single attachment the reference may be omitted.",
			object(map[string]*domain.Schema{
				"instruction": str("Instruction, e.g., 'summarize', 'extract tables', 'Q&A'."),
				"source":      &domain.Schema{Type: domain.TypeString, Description: "Either 'file_uri' or 'base64'.", Enum: []string{"file_uri", "base64"}},
				"file_uri":    str("Attachment URL, storage URL or Files API URI, copied verbatim."),
				"file_uris":   array("Several document URLs to analyze together.", str("")),
				"file_name":   str("Name of an attached file."),
				"base64":      str("Base64 data if provided inline."),
				"mime_type":   str("MIME type, e.g., application/pdf, image/png."),
			}, "instruction")),
		decl(GenerateImage, "Generate an image from a text prompt. Returns the storage path and URL.",
			object(map[string]*domain.Schema{
				"prompt":    str("Image description to generate."),
				"folder":    str("Optional storage folder (default 'playground/images')."),
				"file_name": str("Optional output file name (png)."),
			}, "prompt")),
		decl(EnhanceImage, "Enhance or edit an existing image given a URL, attachment name or base64 data and an instruction.",
			object(map[string]*domain.Schema{
				"instruction": str("How to improve the image (e.g., upscale, color grade)."),
				"source":      &domain.Schema{Type: domain.TypeString, Description: "Either 'file_uri' or 'base64'.", Enum: []string{"file_uri", "base64"}},
				"file_uri":    str("URL of the image to enhance, copied verbatim."),
				"source_name": str("Name of an attached image to enhance."),
				"base64":      str("Base64 image data."),
				"mime_type":   str("MIME type for the source if base64 is provided."),
				"folder":      str("Optional storage folder to write the enhanced image."),
				"file_name":   str("Optional output file name (png)."),
			}, "instruction")),

		decl(LintCheck, "Run a fast local check for unbalanced brackets and unterminated strings. No model call.",
			object(map[string]*domain.Schema{
				"path":       str("Path of the file to check."),
				"content":    str("Content to check instead of a stored file."),
				"max_issues": num("Maximum issues to report (default 50, max 200)."),
			})),
		decl(AnalyzeCode, "Review code, or diagnose a specific issue in it, with a model.",
			object(map[string]*domain.Schema{
				"path":    str("Path of the file to analyze."),
				"content": str("Code to analyze instead of a stored file."),
				"issue":   str("Optional description of a bug or error to diagnose."),
			})),
	}
}
