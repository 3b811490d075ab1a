package layout

import (
	"encoding/json"
	"io"
	"os"
)

// WriteDebugJSON 将视觉树输出为 JSON 文件，便于调试或可视化。
func WriteDebugJSON(tree *Tree, path string) error {
	if tree == nil {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeJSON(f, tree); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeJSON 以缩进格式写出视觉树。
func EncodeJSON(w io.Writer, tree *Tree) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tree)
}
