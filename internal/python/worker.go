package python

// WorkerProgram is the Python program run by the worker subprocess.
//
// Protocol, one JSON object per line in both directions:
//
//	stdin:  {"type": "execute", "request_id": "...", "code": "...", "cwd": "..."}
//	stdout: {"type": "ready"}
//	        {"type": "result", "request_id": "...", "output": "...",
//	         "value": "...", "artifacts": [{"mime": "...", "data": "..."}]}
//	        {"type": "error", "request_id": "...", "error_kind": "...",
//	         "message": "...", "traceback": ["..."]}
//
// All requests execute in one shared namespace, so variables, imports, and
// definitions persist across requests. User stdout is captured per request
// and never reaches the protocol channel. If the last statement of a request
// is an expression, its repr is reported as the value, mirroring REPL
// behavior. Objects with _repr_png_ or _repr_html_ are reported as artifacts.
const WorkerProgram = `
import ast
import base64
import io
import json
import os
import sys
import traceback
from contextlib import redirect_stdout


def _reply(obj):
    sys.stdout.write(json.dumps(obj) + "\n")
    sys.stdout.flush()


def _artifacts(value):
    arts = []
    if value is None:
        return arts
    png = getattr(value, "_repr_png_", None)
    if callable(png):
        try:
            data = png()
            if data:
                if isinstance(data, bytes):
                    data = base64.b64encode(data).decode("ascii")
                arts.append({"mime": "image/png", "data": data})
        except Exception:
            pass
    html = getattr(value, "_repr_html_", None)
    if callable(html):
        try:
            data = html()
            if data:
                arts.append({"mime": "text/html", "data": data})
        except Exception:
            pass
    return arts


def _run(code, ns):
    tree = ast.parse(code, mode="exec")
    value = None
    if tree.body and isinstance(tree.body[-1], ast.Expr):
        last = ast.Expression(tree.body.pop(-1).value)
        if tree.body:
            exec(compile(tree, "<session>", "exec"), ns)
        value = eval(compile(last, "<session>", "eval"), ns)
    else:
        exec(compile(tree, "<session>", "exec"), ns)
    return value


def main():
    ns = {"__name__": "__main__", "__builtins__": __builtins__}
    _reply({"type": "ready"})
    for line in sys.stdin:
        line = line.strip()
        if not line:
            continue
        try:
            req = json.loads(line)
        except Exception as exc:
            _reply({"type": "error", "request_id": "", "error_kind": "protocol",
                    "message": "bad request: %s" % exc, "traceback": []})
            continue
        rid = req.get("request_id", "")
        if req.get("type") != "execute":
            _reply({"type": "error", "request_id": rid, "error_kind": "protocol",
                    "message": "unknown request type: %r" % req.get("type"),
                    "traceback": []})
            continue
        cwd = req.get("cwd")
        if cwd:
            try:
                os.chdir(cwd)
            except OSError as exc:
                _reply({"type": "error", "request_id": rid,
                        "error_kind": "exception", "message": str(exc),
                        "traceback": []})
                continue
        buf = io.StringIO()
        try:
            with redirect_stdout(buf):
                value = _run(req.get("code", ""), ns)
        except Exception:
            tb = traceback.format_exc().strip().splitlines()
            _reply({"type": "error", "request_id": rid,
                    "error_kind": "exception",
                    "message": tb[-1] if tb else "execution failed",
                    "traceback": tb})
            continue
        _reply({"type": "result", "request_id": rid,
                "output": buf.getvalue(),
                "value": "" if value is None else repr(value),
                "artifacts": _artifacts(value)})


main()
`
