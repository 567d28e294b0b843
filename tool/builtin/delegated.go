package builtin

import (
	"github.com/hupe1980/toolgate/internal/util"
	"github.com/hupe1980/toolgate/tool"
)

type catArgs struct {
	Path string `json:"path" description:"Absolute path to the file to read"`
}

type writeArgs struct {
	Path    string `json:"path" description:"Absolute path to the file to write"`
	Content string `json:"content" description:"Content to write to the file"`
}

type lsArgs struct {
	Path string `json:"path" description:"Absolute path to the directory to list"`
}

type treeArgs struct {
	Path  string   `json:"path" description:"Absolute path to the root directory"`
	Depth *float64 `json:"depth,omitempty" description:"Maximum depth to recurse (default 3)"`
}

type grepArgs struct {
	Pattern string `json:"pattern" description:"Text pattern to search for (case-insensitive)"`
	Path    string `json:"path" description:"Absolute path to the directory to search in"`
	Glob    string `json:"glob,omitempty" description:"Optional file extension filter, e.g. '.ts' or '.pdf' (default: all files)"`
}

type findArgs struct {
	Path string `json:"path" description:"Absolute path to the directory to search in"`
	Glob string `json:"glob" description:"Glob pattern to match (e.g. \"*.ts\", \"**/*.json\", \"report-*\")"`
}

type copyArgs struct {
	Src  string `json:"src" description:"Absolute path to the source file or directory"`
	Dest string `json:"dest" description:"Absolute path to the destination"`
}

type convertArgs struct {
	Path string `json:"path" description:"Absolute path to the Office file (.pptx, .docx, .xlsx)"`
}

type assetCreateArgs struct {
	Path    string `json:"path" description:"Absolute path to the file"`
	EventID *int64 `json:"eventId,omitempty" description:"Event ID to link the asset to (optional)"`
	Name    string `json:"name,omitempty" description:"Name for the asset (optional, defaults to filename)"`
}

type docxSnapshotArgs struct {
	SourcePath string `json:"sourcePath" description:"Absolute path to the source DOCX file"`
	DestPath   string `json:"destPath" description:"Absolute path for the snapshot copy"`
}

type docxFileArgs struct {
	FilePath string `json:"filePath" description:"Absolute path to the DOCX file"`
}

type docxReplaceArgs struct {
	FilePath string  `json:"filePath" description:"Absolute path to the DOCX file"`
	Index    float64 `json:"index" description:"Paragraph index (0-based)"`
	NewText  string  `json:"newText" description:"New text for the paragraph"`
}

type docxInsertArgs struct {
	FilePath   string  `json:"filePath" description:"Absolute path to the DOCX file"`
	AfterIndex float64 `json:"afterIndex" description:"Insert after this paragraph index (-1 for beginning)"`
	Text       string  `json:"text" description:"Text for the new paragraph"`
}

type docxDeleteArgs struct {
	FilePath string  `json:"filePath" description:"Absolute path to the DOCX file"`
	Index    float64 `json:"index" description:"Paragraph index (0-based) to delete"`
}

func delegated(name, description string, args any) tool.Tool {
	return tool.NewDelegatedTool(name, description, util.CreateSchema(args))
}

// FileTools returns the filesystem tools the delegate executes.
func FileTools() []tool.Tool {
	return []tool.Tool{
		delegated("cat", "Read the contents of a local file. Returns text for text files, or base64 + mimeType for binary files (PDF, images, etc.)", catArgs{}),
		delegated("write", "Write content to a file. Creates the file if it doesn't exist, overwrites if it does.", writeArgs{}),
		delegated("ls", "List files and directories in the specified directory", lsArgs{}),
		delegated("tree", "Recursively list the directory structure as a tree. Useful for exploring project layouts.", treeArgs{}),
		delegated("grep", "Recursively search for a pattern in files under a directory. Returns matching lines with file paths and line numbers.", grepArgs{}),
		delegated("find", "Find files and directories matching a glob pattern under a directory. Returns a list of matching paths.", findArgs{}),
		delegated("cp", "Copy a file or directory. When copying a directory, copies recursively.", copyArgs{}),
		delegated("mv", "Move or rename a file or directory.", copyArgs{}),
		delegated("convert_to_pdf", "Convert a PPTX, DOCX, or XLSX file to PDF, then return the PDF as base64. Use this before reading Office documents.", convertArgs{}),
	}
}

// AssetTools returns the delegated asset import tool.
func AssetTools() []tool.Tool {
	return []tool.Tool{
		delegated("asset_create", "Create an asset from a local file and optionally link it to an event. Reads the file, stores it as an asset, and links to the specified event if eventId is provided.", assetCreateArgs{}),
	}
}

// DocxTools returns the DOCX editing tools the delegate executes.
func DocxTools() []tool.Tool {
	return []tool.Tool{
		delegated("docx_snapshot", "Copy a DOCX file to preserve the original as a snapshot", docxSnapshotArgs{}),
		delegated("docx_read", "Read a DOCX file and return all paragraphs with their indices and text content", docxFileArgs{}),
		delegated("docx_replace_paragraph", "Replace the text of a paragraph in a DOCX file by its index", docxReplaceArgs{}),
		delegated("docx_insert_paragraph", "Insert a new paragraph into a DOCX file after the given index", docxInsertArgs{}),
		delegated("docx_delete_paragraph", "Delete a paragraph from a DOCX file by its index", docxDeleteArgs{}),
	}
}
