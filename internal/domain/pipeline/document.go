package pipeline

import "time"

// Document - одна строка результата: имя поля и значение. Вложенные join
// дают значения Document или []Document.
type Document map[string]any

// String возвращает строку по ключу или "".
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Int возвращает целое по ключу или 0. Счётчики приходят как int64 или
// float64 в зависимости от хранилища.
func (d Document) Int(key string) int64 {
	switch v := d[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Bool возвращает флаг по ключу.
func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Time возвращает время по ключу. Строки RFC3339 разбираются.
func (d Document) Time(key string) time.Time {
	switch v := d[key].(type) {
	case time.Time:
		return v
	case string:
		t, _ := time.Parse(time.RFC3339Nano, v)
		return t
	default:
		return time.Time{}
	}
}

// Doc возвращает вложенный документ или nil.
func (d Document) Doc(key string) Document {
	switch v := d[key].(type) {
	case Document:
		return v
	case map[string]any:
		return Document(v)
	default:
		return nil
	}
}

// Clone - поверхностная копия.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Pick возвращает копию только с fields. nil - все поля.
func (d Document) Pick(fields []string) Document {
	if fields == nil {
		return d.Clone()
	}
	out := make(Document, len(fields))
	for _, f := range fields {
		if v, ok := d[f]; ok {
			out[f] = v
		}
	}
	return out
}
